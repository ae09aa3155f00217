package core

import (
	"context"

	"coursestore/pkg/domain"
)

// CourseDAO is the course persistence contract.
type CourseDAO interface {
	Store(ctx context.Context, course *domain.Course) (*domain.Course, error)
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*domain.Course, bool, error)
	FindAll(ctx context.Context) ([]*domain.Course, error)
}

var _ CourseDAO = (*Gateway[*domain.Course])(nil)

// NewCourseGateway constructs the course gateway.
func NewCourseGateway(sessions domain.SessionFactory[*domain.Course], opts ...Option) *Gateway[*domain.Course] {
	return NewGateway(sessions, opts...)
}
