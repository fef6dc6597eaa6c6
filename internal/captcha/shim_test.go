package captcha

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWidget struct {
	loaded    bool
	loadCalls int
	loadErr   error
	renderErr error
	opts      RenderOptions
	renders   int
	resets    []string
	removed   []string
}

func (f *fakeWidget) Loaded() bool { return f.loaded }

func (f *fakeWidget) LoadScript(context.Context) error {
	f.loadCalls++
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = true
	return nil
}

func (f *fakeWidget) Render(opts RenderOptions) (string, error) {
	f.renders++
	f.opts = opts
	if f.renderErr != nil {
		return "", f.renderErr
	}
	return "w-1", nil
}

func (f *fakeWidget) Reset(id string)  { f.resets = append(f.resets, id) }
func (f *fakeWidget) Remove(id string) { f.removed = append(f.removed, id) }

func TestShimLifecycle(t *testing.T) {
	w := &fakeWidget{}
	s := NewShim(w, "site-key", nil)

	s.Mount(context.Background())
	s.Mount(context.Background())
	assert.Equal(t, 1, w.loadCalls)
	assert.Equal(t, 1, w.renders)
	assert.Equal(t, "site-key", w.opts.SiteKey)
	assert.Equal(t, Container, w.opts.Container)
	assert.Empty(t, s.SubmissionToken())

	w.opts.OnVerified("tok-1")
	assert.Equal(t, "tok-1", s.SubmissionToken())
	assert.False(t, s.Errored())

	w.opts.OnExpired()
	assert.Empty(t, s.SubmissionToken())

	w.opts.OnError()
	assert.True(t, s.Errored())
	assert.Equal(t, BypassToken, s.SubmissionToken())

	w.opts.OnVerified("tok-2")
	assert.Equal(t, "tok-2", s.SubmissionToken())

	s.Reset()
	assert.Empty(t, s.Token())
	assert.Equal(t, []string{"w-1"}, w.resets)

	s.Teardown()
	assert.Equal(t, []string{"w-1"}, w.removed)
	w.opts.OnVerified("late")
	assert.Empty(t, s.Token(), "callbacks after teardown are ignored")
}

func TestShimSkipsLoadedScriptAndRemounts(t *testing.T) {
	w := &fakeWidget{loaded: true}
	s := NewShim(w, "k", nil)
	s.Mount(context.Background())
	s.Teardown()
	s.Mount(context.Background())
	assert.Equal(t, 0, w.loadCalls)
	assert.Equal(t, 2, w.renders)
}

func TestShimRenderFailureFallsBackToBypass(t *testing.T) {
	w := &fakeWidget{renderErr: errors.New("container missing")}
	s := NewShim(w, "k", nil)
	s.Mount(context.Background())
	require.True(t, s.Errored())
	assert.Equal(t, BypassToken, s.SubmissionToken())
}

func TestShimScriptFailureFallsBackToBypass(t *testing.T) {
	w := &fakeWidget{loadErr: errors.New("blocked")}
	s := NewShim(w, "k", nil)
	s.Mount(context.Background())
	assert.Equal(t, 0, w.renders)
	assert.Equal(t, BypassToken, s.SubmissionToken())
}

func TestShimResetKeepsBypassWithoutWidget(t *testing.T) {
	w := &fakeWidget{loadErr: errors.New("blocked")}
	s := NewShim(w, "k", nil)
	s.Mount(context.Background())
	require.Equal(t, BypassToken, s.SubmissionToken())

	s.Reset()
	assert.Equal(t, BypassToken, s.SubmissionToken(), "form stays submittable")
	assert.Empty(t, w.resets)

	s.Mount(context.Background())
	assert.Equal(t, 2, w.loadCalls, "remount retries the script")
	assert.Equal(t, BypassToken, s.SubmissionToken())
}

func TestShimRemountRecoversAfterLoadFailure(t *testing.T) {
	w := &fakeWidget{loadErr: errors.New("blocked")}
	s := NewShim(w, "k", nil)
	s.Mount(context.Background())
	s.Reset()

	w.loadErr = nil
	s.Mount(context.Background())
	assert.Equal(t, 1, w.renders)
	assert.False(t, s.Errored())
	assert.Empty(t, s.SubmissionToken(), "fresh widget must verify again")

	w.opts.OnVerified("tok-3")
	assert.Equal(t, "tok-3", s.SubmissionToken())
}
