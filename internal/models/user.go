package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleGuide    Role = "guide"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleGuide, RoleAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserActive UserStatus = "active"
	UserBanned UserStatus = "banned"
)

func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserBanned
}

type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Email       string             `bson:"email" json:"email" validate:"required,email"`
	Name        string             `bson:"name,omitempty" json:"name,omitempty"`
	PhotoURL    string             `bson:"photoURL,omitempty" json:"photoURL,omitempty"`
	Phone       string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Role        Role               `bson:"role" json:"role"`
	Status      UserStatus         `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
	LastLoginAt time.Time          `bson:"lastLoginAt" json:"lastLoginAt"`
}

type UserRepo interface {
	// UpsertUser inserts the user unless the email is already registered, in
	// which case only lastLoginAt is refreshed. created reports an insert.
	UpsertUser(ctx context.Context, user *User) (stored *User, created bool, err error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUserRole(ctx context.Context, email string, role Role) (*User, error)
	UpdateUserStatus(ctx context.Context, email string, status UserStatus) (*User, error)
	CountUsers(ctx context.Context) (int64, error)
}
