// Package repository holds the gorm backed data access for the front desk
// service. Every exported method takes a context and returns one of the
// sentinel errors below (wrapped) when the failure is the caller's fault.
package repository

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrConflict          = errors.New("record conflicts with existing data")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListParams are the paging, search and sort options shared by list endpoints
type ListParams struct {
	Page   int
	Limit  int
	Search string
	Sort   string
	Order  string
}

// Normalize clamps page and limit into range
func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	p.Search = strings.TrimSpace(p.Search)
	p.Order = strings.ToLower(p.Order)
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// orderBy resolves p.Sort against allowed (request field -> column). Unknown
// fields fall back to def.
func (p ListParams) orderBy(allowed map[string]string, def string, defDesc bool) clause.OrderByColumn {
	col, ok := allowed[p.Sort]
	desc := defDesc
	if !ok {
		col = def
	} else {
		desc = p.Order == "desc"
	}
	return clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc}
}

// searchScope matches term case-insensitively against any of columns
func searchScope(term string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if term == "" {
			return db
		}
		like := "%" + strings.ToLower(term) + "%"
		conds := make([]string, len(columns))
		args := make([]interface{}, len(columns))
		for i, c := range columns {
			conds[i] = "LOWER(" + c + ") LIKE ?"
			args[i] = like
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

// paginate counts the rows matched by q and loads one page of them into out
func paginate[T any](q *gorm.DB, p ListParams, orders []interface{}, out *[]T, preloads ...string) (int64, error) {
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, errors.Wrap(err, "count failed")
	}

	find := q.Offset(p.Offset()).Limit(p.Limit)
	for _, o := range orders {
		find = find.Order(o)
	}
	for _, rel := range preloads {
		find = find.Preload(rel)
	}
	if err := find.Find(out).Error; err != nil {
		return 0, errors.Wrap(err, "list failed")
	}
	return total, nil
}

// exists returns ErrNotFound unless a row of model's table has the given id
func exists(db *gorm.DB, model interface{}, id uint, what string) error {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "failed to look up %s", what)
	}
	if count == 0 {
		return errors.Wrapf(ErrNotFound, "%s %d", what, id)
	}
	return nil
}

// translate maps gorm errors onto the package sentinels
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(ErrNotFound, what)
	case isDuplicate(err):
		return errors.Wrap(ErrConflict, what)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidTransition):
		return err
	}
	return errors.Wrap(err, what)
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// Store bundles the repositories the handlers depend on
type Store struct {
	DB           *gorm.DB
	Users        *UserRepository
	Tokens       *TokenRepository
	Patients     *PatientRepository
	Doctors      *DoctorRepository
	Queue        *QueueRepository
	Appointments *AppointmentRepository
	Logs         *RequestLogRepository
	Dashboard    *DashboardRepository
}

func New(db *gorm.DB) *Store {
	return &Store{
		DB:           db,
		Users:        &UserRepository{db: db},
		Tokens:       &TokenRepository{db: db},
		Patients:     &PatientRepository{db: db},
		Doctors:      &DoctorRepository{db: db},
		Queue:        &QueueRepository{db: db},
		Appointments: &AppointmentRepository{db: db},
		Logs:         &RequestLogRepository{db: db},
		Dashboard:    &DashboardRepository{db: db},
	}
}

// Ping checks the database answers
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB")
	}
	return sqlDB.PingContext(ctx)
}
