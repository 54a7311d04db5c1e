package falerh

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"rh-portal-be/internal/models"
)

const (
	DefaultPageSize = 20

	// DetailMessageCap is how many of the newest messages a detail fetch returns.
	DetailMessageCap = 300
)

type MessageInput struct {
	Kind      models.MessageKind `json:"kind" validate:"required,oneof=PRESET TEXTO"`
	PresetKey string             `json:"preset_key" validate:"required_if=Kind PRESET,max=60"`
	Content   string             `json:"content" validate:"required,max=4000"`
}

type CreateInput struct {
	Category string       `json:"category" validate:"required,max=60"`
	Subject  string       `json:"subject" validate:"max=160"`
	Message  MessageInput `json:"message"`
}

// ListFilter selects one page of conversations. A nil Page or PageSize
// takes the default; an explicit zero is rejected.
type ListFilter struct {
	Status   models.Status `json:"status" form:"status" validate:"omitempty,conversation_status"`
	Search   string        `json:"search" form:"search" validate:"max=100"`
	Page     *int          `json:"page" form:"page" validate:"omitnil,min=1"`
	PageSize *int          `json:"pageSize" form:"pageSize" validate:"omitnil,min=1,max=100"`
}

// ValidationError reports malformed input, keyed by JSON field path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("conversation_status", func(fl validator.FieldLevel) bool {
		return models.Status(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	return v
}

func (in *MessageInput) normalize() {
	in.Kind = models.MessageKind(strings.ToUpper(strings.TrimSpace(string(in.Kind))))
	in.PresetKey = strings.TrimSpace(in.PresetKey)
	in.Content = strings.TrimSpace(in.Content)
	if in.Kind == models.KindTexto {
		in.PresetKey = ""
	}
}

func (in *CreateInput) normalize() {
	in.Category = strings.TrimSpace(in.Category)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message.normalize()
}

func (f *ListFilter) normalize() {
	f.Status = models.Status(strings.ToUpper(strings.TrimSpace(string(f.Status))))
	f.Search = strings.TrimSpace(f.Search)
	if f.Page == nil {
		page := 1
		f.Page = &page
	}
	if f.PageSize == nil {
		size := DefaultPageSize
		f.PageSize = &size
	}
}

func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldPath(fe)] = describe(fe)
	}
	return out
}

// fieldPath drops the root struct name: "CreateInput.message.content" -> "message.content".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return "must have at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "conversation_status":
		return "must be one of PENDENTE ABERTA FECHADA"
	default:
		return "is invalid"
	}
}
