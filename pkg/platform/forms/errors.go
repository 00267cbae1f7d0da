// Package forms holds the error collection a form submission accumulates
// while it is validated. Handlers render every message back to the user.
package forms

// FieldError is one failed check on a submission.
type FieldError struct {
	Code    string
	Message string
}

// Errors collects failed checks in the order they were added. The zero value
// is ready to use.
type Errors struct {
	items []FieldError
}

func NewErrors() *Errors {
	return &Errors{}
}

func (e *Errors) Add(code, message string) {
	e.items = append(e.items, FieldError{Code: code, Message: message})
}

func (e *Errors) HasErrors() bool {
	return e != nil && len(e.items) > 0
}

// Has reports whether an error with code was added.
func (e *Errors) Has(code string) bool {
	if e == nil {
		return false
	}
	for _, it := range e.items {
		if it.Code == code {
			return true
		}
	}
	return false
}

func (e *Errors) Items() []FieldError {
	if e == nil {
		return nil
	}
	return append([]FieldError(nil), e.items...)
}

// Messages returns the user-facing messages, deduplicated, in insertion order.
func (e *Errors) Messages() []string {
	if e == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(e.items))
	out := make([]string, 0, len(e.items))
	for _, it := range e.items {
		if _, ok := seen[it.Message]; ok {
			continue
		}
		seen[it.Message] = struct{}{}
		out = append(out, it.Message)
	}
	return out
}
