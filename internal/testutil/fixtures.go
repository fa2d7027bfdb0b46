package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calyptra/ace-go/pkg/precedent"
)

// SeedOutcomes records n action+outcome pairs for class, building up
// (or tearing down) precedent the way real usage would.
func SeedOutcomes(t *testing.T, book *precedent.Book, class string, n int, result precedent.Result) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := book.RecordAction(precedent.RecordActionInput{Class: class})
		require.NoError(t, err)
		_, err = book.RecordOutcome(precedent.OutcomeInput{Class: class, Result: result})
		require.NoError(t, err)
	}
}

// NewBook builds a memory-backed book on a manual clock.
func NewBook(t *testing.T, clock *ManualClock, opts ...precedent.Option) *precedent.Book {
	t.Helper()
	opts = append([]precedent.Option{precedent.WithClock(clock.Now)}, opts...)
	book, err := precedent.NewBook(precedent.NewMemoryStore(), opts...)
	require.NoError(t, err)
	return book
}
