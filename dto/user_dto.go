package dto

import (
	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/models"
)

// UpdateMeDTO is what a user may change about their own account. Password
// fields are accepted only so they can be rejected with a pointer to the
// right endpoint.
type UpdateMeDTO struct {
	Name            *string `json:"name" form:"name" binding:"omitempty,max=80"`
	Email           *string `json:"email" form:"email" binding:"omitempty,email"`
	Password        string  `json:"password" form:"password"`
	PasswordConfirm string  `json:"passwordConfirm" form:"passwordConfirm"`
}

var ErrPasswordViaUpdateMe = apperror.Validation("This route is not for password updates. Please use /updateMyPassword.")

func (d *UpdateMeDTO) Apply(u *models.User) error {
	if d.Password != "" || d.PasswordConfirm != "" {
		return ErrPasswordViaUpdateMe
	}
	if d.Name != nil {
		u.Name = *d.Name
	}
	if d.Email != nil {
		u.Email = *d.Email
	}
	return nil
}

type CreateUserDTO struct {
	Name     string      `json:"name" binding:"required,max=80"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=8"`
	Role     models.Role `json:"role" binding:"omitempty,oneof=user guide lead-guide admin"`
	Photo    string      `json:"photo"`
}

func (d *CreateUserDTO) User() *models.User {
	u := &models.User{Name: d.Name, Email: d.Email, Role: d.Role, Photo: d.Photo}
	u.SetPassword(d.Password)
	return u
}

// AdminUpdateUserDTO never touches credentials; admins reset passwords
// through the forgot-password flow like everyone else.
type AdminUpdateUserDTO struct {
	Name  *string      `json:"name" binding:"omitempty,max=80"`
	Email *string      `json:"email" binding:"omitempty,email"`
	Role  *models.Role `json:"role" binding:"omitempty,oneof=user guide lead-guide admin"`
	Photo *string      `json:"photo"`
}

func (d *AdminUpdateUserDTO) Apply(u *models.User) {
	if d.Name != nil {
		u.Name = *d.Name
	}
	if d.Email != nil {
		u.Email = *d.Email
	}
	if d.Role != nil {
		u.Role = *d.Role
	}
	if d.Photo != nil {
		u.Photo = *d.Photo
	}
}
