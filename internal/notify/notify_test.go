package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	logadapter "github.com/wateringctl/wateringctl/internal/adapters/log"
	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
)

type captureNotifier struct {
	got []ports.Notification
}

func (c *captureNotifier) Publish(n ports.Notification) { c.got = append(c.got, n) }

func newInterceptor(t *testing.T, lang string) (*Interceptor, *captureNotifier) {
	t.Helper()
	n := &captureNotifier{}
	i, err := NewInterceptor(lang, n, logadapter.NewNoopLogger())
	require.NoError(t, err)
	return i, n
}

func TestInterceptor_WrapReturnsOriginalError(t *testing.T) {
	i, n := newInterceptor(t, "en")

	orig := &domain.StatusError{Op: domain.VerbFetch, Code: domain.StatusTargetNotExisting}
	err := i.Wrap(fmt.Errorf("list /www: %w", orig))

	var se *domain.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, domain.StatusTargetNotExisting, se.Code)

	require.Len(t, n.got, 1)
	assert.Equal(t, "Server error", n.got[0].Headline)
	assert.Equal(t, "The target does not exist.", n.got[0].Text)
	assert.Equal(t, ColorWarning, n.got[0].Color)
	assert.Equal(t, IconWarning, n.got[0].Icon)
	assert.Equal(t, DefaultTimeout, n.got[0].Timeout)
}

func TestInterceptor_FallsBackToDefaultMessage(t *testing.T) {
	i, n := newInterceptor(t, "en")

	_ = i.Wrap(&domain.StatusError{Op: domain.VerbWrite, Code: domain.Status("WSFS_SOMETHING_NEW")})
	_ = i.Wrap(errors.New("boom"))

	require.Len(t, n.got, 2)
	assert.Equal(t, "The device reported an unknown error.", n.got[0].Text)
	assert.Equal(t, "The device reported an unknown error.", n.got[1].Text)
}

func TestInterceptor_ClientSideConditions(t *testing.T) {
	i, n := newInterceptor(t, "en")

	_ = i.Wrap(domain.ErrTimeout)
	_ = i.Wrap(domain.ErrOperationInFlight)

	require.Len(t, n.got, 2)
	assert.Equal(t, "The device did not answer in time.", n.got[0].Text)
	assert.Equal(t, "Another operation is still running.", n.got[1].Text)
}

func TestInterceptor_SilentForNilAndCancel(t *testing.T) {
	i, n := newInterceptor(t, "en")

	assert.NoError(t, i.Wrap(nil))
	assert.ErrorIs(t, i.Wrap(context.Canceled), context.Canceled)
	assert.Empty(t, n.got)
}

func TestInterceptor_German(t *testing.T) {
	i, n := newInterceptor(t, "de-CH")
	assert.Equal(t, language.German, i.Language())

	_ = i.Wrap(&domain.StatusError{Op: domain.VerbDelete, Code: domain.StatusCouldNotDeleteDir})
	require.Len(t, n.got, 1)
	assert.Equal(t, "Serverfehler", n.got[0].Headline)
	assert.Equal(t, "Das Verzeichnis konnte nicht gelöscht werden.", n.got[0].Text)
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want language.Tag
	}{
		{"en", language.English},
		{"de", language.German},
		{"fr", language.English},
		{"not a tag!", language.English},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchLanguage(tt.in), tt.in)
	}
}

func TestCenter_ExpiresNotifications(t *testing.T) {
	c := NewCenter()
	var seen int
	c.Subscribe(func(ports.Notification) { seen++ })

	c.Publish(ports.Notification{Text: "sticky"})
	c.Publish(ports.Notification{Text: "short", Timeout: 10 * time.Millisecond})

	assert.Equal(t, 2, seen)
	assert.Len(t, c.Items(), 2)
	require.Eventually(t, func() bool { return len(c.Items()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "sticky", c.Items()[0].Text)
}
