package lexicon

import "sync/atomic"

// Store hands out the current lexicon. Readers keep the pointer they got for the whole request.
type Store struct {
	current atomic.Pointer[Lexicon]
}

func NewStore(initial *Lexicon) *Store {
	if initial == nil {
		initial = Default()
	}
	s := &Store{}
	s.current.Store(initial)
	return s
}

func (s *Store) Current() *Lexicon {
	return s.current.Load()
}

func (s *Store) Replace(lex *Lexicon) {
	if lex == nil {
		return
	}
	s.current.Store(lex)
}
