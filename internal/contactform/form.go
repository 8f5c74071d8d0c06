package contactform

import "sync"

// Field names posted by the contact form.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldSubject = "subject"
	FieldMessage = "message"
)

// Form holds the visitor's input between submissions.
type Form struct {
	mu     sync.Mutex
	values map[string]string
}

func NewForm() *Form {
	return &Form{values: make(map[string]string)}
}

func (f *Form) Set(field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[field] = value
}

// Get returns the field value; unset fields read as empty text.
func (f *Form) Get(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[field]
}

// Reset clears every input.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = make(map[string]string)
}

// Payload is the JSON body sent to the contact endpoint.
type Payload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (f *Form) Payload() Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Payload{
		Name:    f.values[FieldName],
		Email:   f.values[FieldEmail],
		Subject: f.values[FieldSubject],
		Message: f.values[FieldMessage],
	}
}
