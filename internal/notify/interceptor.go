// Package notify turns operation failures into localized, transient user
// notifications.
package notify

import (
	"context"
	"errors"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/ports"
)

// Notification presentation defaults.
const (
	ColorWarning   = "warning"
	ColorSuccess   = "success"
	IconWarning    = "warning.svg"
	DefaultTimeout = 5 * time.Second
)

// Interceptor publishes a notification for every failure passed to Wrap and
// hands the error back unchanged.
type Interceptor struct {
	printer  *message.Printer
	tag      language.Tag
	notifier ports.Notifier
	logger   ports.Logger
}

// NewInterceptor creates an interceptor speaking lang (BCP 47, e.g. "de").
// Unknown languages fall back to English. notifier may be nil, in which case
// failures are only logged.
func NewInterceptor(lang string, notifier ports.Notifier, logger ports.Logger) (*Interceptor, error) {
	cat, err := newCatalog()
	if err != nil {
		return nil, err
	}
	tag := MatchLanguage(lang)
	return &Interceptor{
		printer:  message.NewPrinter(tag, message.Catalog(cat)),
		tag:      tag,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// MatchLanguage resolves lang against Supported.
func MatchLanguage(lang string) language.Tag {
	requested, err := language.Parse(lang)
	if err != nil {
		return Supported[0]
	}
	_, idx, conf := language.NewMatcher(Supported).Match(requested)
	if conf == language.No {
		return Supported[0]
	}
	return Supported[idx]
}

// Language returns the language notifications are rendered in.
func (i *Interceptor) Language() language.Tag {
	return i.tag
}

// Wrap publishes a notification describing err and returns err. Nil errors
// and cancellations requested by the caller pass through silently.
func (i *Interceptor) Wrap(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}

	n := ports.Notification{
		Headline: i.printer.Sprintf(KeyHeadline),
		Text:     i.Message(codeOf(err)),
		Color:    ColorWarning,
		Icon:     IconWarning,
		Timeout:  DefaultTimeout,
	}

	i.logger.Warn("operation failed",
		ports.Err(err),
		ports.String("notification", n.Text),
	)
	if i.notifier != nil {
		i.notifier.Publish(n)
	}
	return err
}

// Message resolves the text for code, falling back to the default message
// when the code has no translation.
func (i *Interceptor) Message(code string) string {
	if code == "" {
		return i.printer.Sprintf(KeyDefault)
	}
	key := keyPrefix + code
	text := i.printer.Sprintf(key)
	if text == key {
		return i.printer.Sprintf(KeyDefault)
	}
	return text
}

func codeOf(err error) string {
	if code, ok := domain.StatusCode(err); ok {
		return code.String()
	}
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		return apiErr.Code
	}
	switch {
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, domain.ErrMalformedPayload):
		return CodeMalformed
	case errors.Is(err, domain.ErrLengthOverrun):
		return CodeLengthOverrun
	case errors.Is(err, domain.ErrOperationInFlight):
		return CodeInFlight
	}
	return ""
}
