package handlers

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lizet96/frontdesk/auth"
	"github.com/lizet96/frontdesk/logger"
	"github.com/lizet96/frontdesk/repository"
	"github.com/sirupsen/logrus"
)

// Handler atiende la API REST sobre los repositorios
type Handler struct {
	store    *repository.Store
	tokens   *auth.TokenService
	validate *validator.Validate
	log      logrus.FieldLogger

	// Now reloj para llegadas, llamados y expiración de tokens
	Now func() time.Time
}

func New(store *repository.Store, tokens *auth.TokenService) *Handler {
	return &Handler{
		store:    store,
		tokens:   tokens,
		validate: newValidator(),
		log:      logger.API,
		Now:      time.Now,
	}
}

// Tokens expone el servicio de tokens para el middleware de auth
func (h *Handler) Tokens() *auth.TokenService {
	return h.tokens
}

// newValidator reporta los errores con el nombre json del campo
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
