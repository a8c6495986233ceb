package models

import "strconv"

func WithStatus(status WatchStatus) ItemOption {
	return func(w *WatchlistItem) { w.Status = status }
}

// WithNotes replaces the notes; an empty string clears them.
func WithNotes(notes string) ItemOption {
	return func(w *WatchlistItem) {
		if notes == "" {
			w.Notes = nil
			return
		}
		w.Notes = &notes
	}
}

func WithAnimeScore(score float64) ItemOption {
	return func(w *WatchlistItem) { w.AnimeScore = &score }
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
