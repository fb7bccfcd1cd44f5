package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/domain"
	"roadwiki/app/internal/users"
)

// userBody is the public view of an account. Credentials and keys stay server-side.
type userBody struct {
	ID          string `json:"id" doc:"User identifier"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
	IsAdmin     bool   `json:"isAdmin"`
	IsEditor    bool   `json:"isEditor"`
	IsActivated bool   `json:"isActivated"`
}

func newUserBody(user *domain.User) userBody {
	return userBody{
		ID:          user.ID.String(),
		Username:    user.Username,
		Email:       user.Email,
		Firstname:   user.Firstname,
		Lastname:    user.Lastname,
		IsAdmin:     user.IsAdmin,
		IsEditor:    user.IsEditor,
		IsActivated: user.IsActivated,
	}
}

func newUserBodies(list []domain.User) []userBody {
	bodies := make([]userBody, 0, len(list))
	for i := range list {
		bodies = append(bodies, newUserBody(&list[i]))
	}
	return bodies
}

type userResponse struct {
	Body userBody
}

type usersResponse struct {
	Body []userBody
}

type registerInput struct {
	Body struct {
		Username  string `json:"username" minLength:"1"`
		Email     string `json:"email" minLength:"3"`
		Firstname string `json:"firstname,omitempty"`
		Lastname  string `json:"lastname,omitempty"`
		Password  string `json:"password" minLength:"1"`
		IsAdmin   bool   `json:"isAdmin,omitempty"`
		IsEditor  bool   `json:"isEditor,omitempty"`
		Activated bool   `json:"activated,omitempty" doc:"Skip the activation step"`
	}
}

type registerResponse struct {
	Body struct {
		User          userBody `json:"user"`
		ActivationKey string   `json:"activationKey,omitempty" doc:"Key to pass to the activate endpoint"`
	}
}

type keyInput struct {
	Body struct {
		Key string `json:"key" minLength:"1"`
	}
}

type resetRequestInput struct {
	Body struct {
		Email string `json:"email" minLength:"1"`
	}
}

type resetRequestResponse struct {
	Body struct {
		ResetKey string `json:"resetKey"`
	}
}

type resetInput struct {
	Body struct {
		Key      string `json:"key" minLength:"1"`
		Password string `json:"password" minLength:"1"`
	}
}

type authenticateInput struct {
	Body struct {
		Email    string `json:"email" minLength:"1"`
		Password string `json:"password" minLength:"1"`
	}
}

type userIDInput struct {
	ID string `path:"id" doc:"User identifier"`
}

type rolesInput struct {
	ID   string `path:"id"`
	Body struct {
		IsAdmin  bool `json:"isAdmin"`
		IsEditor bool `json:"isEditor"`
	}
}

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "register-user",
		Method:        stdhttp.MethodPost,
		Path:          "/api/users",
		Summary:       "Register a user",
		DefaultStatus: stdhttp.StatusCreated,
	}, s.registerUserHandler)
	huma.Post(s.api, "/api/users/activate", s.activateUserHandler, func(op *huma.Operation) {
		op.Summary = "Activate a user"
	})
	huma.Post(s.api, "/api/users/authenticate", s.authenticateHandler, func(op *huma.Operation) {
		op.Summary = "Check a user's credentials"
	})
	huma.Register(s.api, huma.Operation{
		OperationID:   "request-password-reset",
		Method:        stdhttp.MethodPost,
		Path:          "/api/users/password-reset",
		Summary:       "Issue a password reset key",
		DefaultStatus: stdhttp.StatusAccepted,
	}, s.requestPasswordResetHandler)
	huma.Post(s.api, "/api/users/password-reset/confirm", s.resetPasswordHandler, func(op *huma.Operation) {
		op.Summary = "Reset a password"
	})
	huma.Get(s.api, "/api/users/admins", s.adminsHandler, func(op *huma.Operation) {
		op.Summary = "List administrators"
	})
	huma.Get(s.api, "/api/users/editors", s.editorsHandler, func(op *huma.Operation) {
		op.Summary = "List editors"
	})
	huma.Get(s.api, "/api/users/{id}", s.getUserHandler, func(op *huma.Operation) {
		op.Summary = "Fetch a user"
	})
	huma.Put(s.api, "/api/users/{id}/roles", s.setRolesHandler, func(op *huma.Operation) {
		op.Summary = "Change a user's roles"
	})
	huma.Delete(s.api, "/api/users/{id}", s.deleteUserHandler, func(op *huma.Operation) {
		op.Summary = "Delete a user"
	})
}

func (s *Server) registerUserHandler(ctx context.Context, input *registerInput) (*registerResponse, error) {
	user, err := s.users.Register(ctx, users.RegisterInput{
		Username:  input.Body.Username,
		Email:     input.Body.Email,
		Firstname: input.Body.Firstname,
		Lastname:  input.Body.Lastname,
		Password:  input.Body.Password,
		IsAdmin:   input.Body.IsAdmin,
		IsEditor:  input.Body.IsEditor,
		Activated: input.Body.Activated,
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "registering user", logrus.Fields{"username": input.Body.Username})
	}

	resp := &registerResponse{}
	resp.Body.User = newUserBody(user)
	resp.Body.ActivationKey = user.ActivationKey
	return resp, nil
}

func (s *Server) activateUserHandler(ctx context.Context, input *keyInput) (*userResponse, error) {
	user, err := s.users.Activate(ctx, input.Body.Key)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "activating user", nil)
	}
	return &userResponse{Body: newUserBody(user)}, nil
}

func (s *Server) authenticateHandler(ctx context.Context, input *authenticateInput) (*userResponse, error) {
	user, err := s.users.Authenticate(ctx, input.Body.Email, input.Body.Password)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "authenticating user", nil)
	}
	return &userResponse{Body: newUserBody(user)}, nil
}

func (s *Server) requestPasswordResetHandler(ctx context.Context, input *resetRequestInput) (*resetRequestResponse, error) {
	key, err := s.users.RequestPasswordReset(ctx, input.Body.Email)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "requesting password reset", nil)
	}
	resp := &resetRequestResponse{}
	resp.Body.ResetKey = key
	return resp, nil
}

func (s *Server) resetPasswordHandler(ctx context.Context, input *resetInput) (*userResponse, error) {
	user, err := s.users.ResetPassword(ctx, input.Body.Key, input.Body.Password)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "resetting password", nil)
	}
	return &userResponse{Body: newUserBody(user)}, nil
}

func (s *Server) adminsHandler(ctx context.Context, _ *struct{}) (*usersResponse, error) {
	list, err := s.users.Admins(ctx)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing admins", nil)
	}
	return &usersResponse{Body: newUserBodies(list)}, nil
}

func (s *Server) editorsHandler(ctx context.Context, _ *struct{}) (*usersResponse, error) {
	list, err := s.users.Editors(ctx)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing editors", nil)
	}
	return &usersResponse{Body: newUserBodies(list)}, nil
}

func (s *Server) getUserHandler(ctx context.Context, input *userIDInput) (*userResponse, error) {
	id, err := parseUserID(input.ID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "loading user", logrus.Fields{"user_id": input.ID})
	}
	return &userResponse{Body: newUserBody(user)}, nil
}

func (s *Server) setRolesHandler(ctx context.Context, input *rolesInput) (*userResponse, error) {
	id, err := parseUserID(input.ID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.SetRoles(ctx, id, input.Body.IsAdmin, input.Body.IsEditor)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "changing roles", logrus.Fields{"user_id": input.ID})
	}
	return &userResponse{Body: newUserBody(user)}, nil
}

func (s *Server) deleteUserHandler(ctx context.Context, input *userIDInput) (*struct{}, error) {
	id, err := parseUserID(input.ID)
	if err != nil {
		return nil, err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return nil, s.toHTTPError(ctx, err, "deleting user", logrus.Fields{"user_id": input.ID})
	}
	return nil, nil
}

func parseUserID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, huma.Error400BadRequest("user id must be a UUID")
	}
	return id, nil
}
