package httpapi

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3,max=15"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required,min=3,max=15"`
	NewPassword string `json:"newPassword" validate:"required,min=3,max=15"`
}

type updateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Email *string `json:"email" validate:"omitempty,email"`
}

type createPostRequest struct {
	Title       string `json:"title" validate:"required"`
	ImageURL    string `json:"imageUrl" validate:"required"`
	Description string `json:"description" validate:"required"`
}

type updatePostRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,min=1"`
	Description *string `json:"description" validate:"omitempty,min=1"`
}

type textRequest struct {
	Text string `json:"text" validate:"required"`
}
