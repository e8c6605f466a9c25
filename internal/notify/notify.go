package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Template names understood by the dispatcher.
const (
	TemplateNewUserSetPassword = "new_user_set_password"
	TemplatePasswordReset      = "password_reset"
	TemplatePasswordChanged    = "password_changed"
)

// PageTitle is the locale-specific title carried in every send request.
const PageTitle = "Cambiar Contraseña"

// ErrDeliveryFailure wraps transport failures. Delivery failures never roll
// back password or token state that already succeeded.
var ErrDeliveryFailure = errors.New("notify: delivery failure")

// SendRequest is the fully-formed request handed to a dispatcher. Template
// rendering engines live behind this boundary; callers only name a template
// and its variables.
type SendRequest struct {
	To        string
	Template  string
	Variables map[string]string
}

// Dispatcher sends one notification.
type Dispatcher interface {
	Send(ctx context.Context, req SendRequest) error
}

func subjectFor(template string) string {
	switch template {
	case TemplatePasswordChanged:
		return "Your password was changed"
	default:
		return "Password Change Request"
	}
}

// renderText assembles a plain-text body from the template variables. Rich
// template rendering is out of scope here; the dispatcher contract is what
// matters.
func renderText(req SendRequest) string {
	var b strings.Builder
	name := strings.TrimSpace(req.Variables["first_name"] + " " + req.Variables["last_name"])
	if name != "" {
		fmt.Fprintf(&b, "Hello %s,\n\n", name)
	} else {
		b.WriteString("Hello,\n\n")
	}

	switch req.Template {
	case TemplatePasswordChanged:
		b.WriteString("Your password was changed. If this was not you, request a new reset link immediately.\n")
	default:
		b.WriteString("Use the link below to set your password:\n\n")
		b.WriteString(req.Variables["reset_link"])
		b.WriteString("\n\nThis link expires in 24 hours.\n")
	}

	if title := req.Variables["page_title"]; title != "" {
		fmt.Fprintf(&b, "\n-- %s\n", title)
	}
	return b.String()
}
