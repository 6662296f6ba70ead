package fill

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nikhilsahni7/FormX/forms"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *forms.Session {
	t.Helper()
	form := &forms.Form{ID: "f", Fields: []forms.FieldSchema{{ID: "count", Kind: forms.KindText}}}
	s, err := forms.NewSession(form, forms.Anonymous())
	require.NoError(t, err)
	return s
}

func TestRegistryWith(t *testing.T) {
	r := NewRegistry(time.Minute, logrus.New())
	e := r.Add("tok", newSession(t))

	err := r.With(e.ID, func(got *Entry) error {
		assert.Equal(t, "tok", got.Token)
		return got.Session.SetAnswer("count", forms.Text("1"))
	})
	require.NoError(t, err)

	sentinel := errors.New("boom")
	assert.ErrorIs(t, r.With(e.ID, func(*Entry) error { return sentinel }), sentinel)
	assert.ErrorIs(t, r.With("missing", func(*Entry) error { return nil }), ErrNoSession)

	r.Remove(e.ID)
	assert.Equal(t, 0, r.Len())
}

func TestRegistrySerialisesAccess(t *testing.T) {
	r := NewRegistry(time.Minute, logrus.New())
	e := r.Add("tok", newSession(t))

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.With(e.ID, func(*Entry) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestRegistrySweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(10*time.Minute, logrus.New())
	r.now = func() time.Time { return now }

	stale := r.Add("a", newSession(t))
	fresh := r.Add("b", newSession(t))

	now = now.Add(8 * time.Minute)
	require.NoError(t, r.With(fresh.ID, func(*Entry) error { return nil }))

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.ErrorIs(t, r.With(stale.ID, func(*Entry) error { return nil }), ErrNoSession)
	assert.NoError(t, r.With(fresh.ID, func(*Entry) error { return nil }))
}
