package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/domain/access"
	"github.com/stencilcms/stencil/domain/user"
	"github.com/stencilcms/stencil/pkg/jsonapi"
)

func (h *Handler) userRoutes(r chi.Router) {
	r.Get("/me", h.Me)

	r.Route("/users", func(r chi.Router) {
		r.With(h.requireScope("internal:user:read", access.Options{})).Get("/", h.UserList)
		r.With(h.requireScope("internal:user:create", access.Options{})).Post("/", h.UserCreate)

		r.Route("/{userId}", func(r chi.Router) {
			r.With(h.requireScope("internal:user:read", access.Options{})).Get("/", h.UserGet)
			r.With(h.requireScope("internal:user:update", access.Options{})).Patch("/", h.UserUpdate)
			r.With(h.requireScope("internal:user:delete", access.Options{})).Delete("/", h.UserRemove)

			r.With(h.requireScope("internal:user:update", access.Options{})).Post("/api-keys", h.APIKeyCreate)
			r.With(h.requireScope("internal:user:update", access.Options{})).Delete("/api-keys/{index}", h.APIKeyRevoke)
		})
	})

	r.Route("/roles", func(r chi.Router) {
		r.With(h.requireScope("internal:role:read", access.Options{})).Get("/", h.RoleList)
		r.With(h.requireScope("internal:role:create", access.Options{})).Post("/", h.RoleCreate)
		r.With(h.requireScope("internal:role:update", access.Options{})).Put("/{name}", h.RoleUpdate)
		r.With(h.requireScope("internal:role:delete", access.Options{})).Delete("/{name}", h.RoleRemove)
	})
}

// Login authenticates with email and password and returns a session
// token. Registered outside the authenticated group.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	token, u, err := h.users.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if h.metrics != nil {
			h.metrics.AuthFailures.WithLabelValues("bad_login").Inc()
		}
		h.respondError(w, r, err)
		return
	}

	res := userResource(u)
	res.Meta = jsonapi.Meta{"token": token}
	jsonapi.WriteResource(w, http.StatusOK, res)
}

// Me returns the authenticated principal and its effective scopes.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		jsonapi.WriteUnauthorized(w, "")
		return
	}

	u, err := h.users.Get(r.Context(), p.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	res := userResource(u)
	res.Meta = jsonapi.Meta{"effectiveScopes": p.Scopes}
	jsonapi.WriteResource(w, http.StatusOK, res)
}

func (h *Handler) UserList(w http.ResponseWriter, r *http.Request) {
	page, perPage := h.pageParams(r)

	users, pg, err := h.users.List(r.Context(), page, perPage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(users))
	for _, u := range users {
		resources = append(resources, userResource(u))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, pageOf(pg, "/api/v1/users"))
}

func (h *Handler) UserCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     string   `json:"email"`
		FirstName string   `json:"firstName"`
		LastName  string   `json:"lastName"`
		Password  string   `json:"password"`
		Roles     []string `json:"roles"`
		Scopes    []string `json:"scopes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	u, err := h.users.Create(r.Context(), user.CreateRequest{
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Password:  body.Password,
		Roles:     body.Roles,
		Scopes:    body.Scopes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteCreated(w, userResource(u), "/api/v1/users/"+u.ID)
}

func (h *Handler) UserGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, userResource(u))
}

func (h *Handler) UserUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FirstName *string   `json:"firstName"`
		LastName  *string   `json:"lastName"`
		Password  *string   `json:"password"`
		Roles     *[]string `json:"roles"`
		Scopes    *[]string `json:"scopes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	u, err := h.users.Update(r.Context(), chi.URLParam(r, "userId"), app.UpdateUserInput{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Password:  body.Password,
		Roles:     body.Roles,
		Scopes:    body.Scopes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, userResource(u))
}

func (h *Handler) UserRemove(w http.ResponseWriter, r *http.Request) {
	removed, err := h.users.Remove(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !removed {
		jsonapi.WriteNotFound(w, "user")
		return
	}
	jsonapi.WriteNoContent(w)
}

// APIKeyCreate issues a new API key. The raw key is returned exactly
// once; only its hash is stored.
func (h *Handler) APIKeyCreate(w http.ResponseWriter, r *http.Request) {
	raw, err := h.users.CreateAPIKey(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteMeta(w, http.StatusCreated, jsonapi.Meta{"apiKey": raw})
}

func (h *Handler) APIKeyRevoke(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonapi.WriteBadRequest(w, "API key index must be an integer")
		return
	}

	revoked, err := h.users.RevokeAPIKey(r.Context(), chi.URLParam(r, "userId"), index)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !revoked {
		jsonapi.WriteNotFound(w, "api key")
		return
	}
	jsonapi.WriteNoContent(w)
}

func (h *Handler) RoleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.users.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(roles))
	for _, role := range roles {
		resources = append(resources, roleResource(role))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, nil)
}

func (h *Handler) RoleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   string   `json:"name"`
		Scopes []string `json:"scopes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	role, err := h.users.CreateRole(r.Context(), body.Name, body.Scopes)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteCreated(w, roleResource(role), "/api/v1/roles/"+role.Name)
}

func (h *Handler) RoleUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scopes []string `json:"scopes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	role, err := h.users.UpdateRole(r.Context(), chi.URLParam(r, "name"), body.Scopes)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, roleResource(role))
}

func (h *Handler) RoleRemove(w http.ResponseWriter, r *http.Request) {
	removed, err := h.users.RemoveRole(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !removed {
		jsonapi.WriteNotFound(w, "role")
		return
	}
	jsonapi.WriteNoContent(w)
}

// userResource never exposes the password hash or stored key hashes;
// only the number of active API keys is reported.
func userResource(u user.User) jsonapi.Resource {
	return jsonapi.NewResource("user", u.ID).
		Attr("email", u.Email).
		Attr("firstName", u.FirstName).
		Attr("lastName", u.LastName).
		Attr("roles", u.Roles).
		Attr("scopes", u.Scopes).
		Attr("apiKeyCount", len(u.APIKeys)).
		Attr("createdAt", u.CreatedAt).
		Attr("updatedAt", u.UpdatedAt).
		Build()
}

func roleResource(role user.Role) jsonapi.Resource {
	return jsonapi.NewResource("role", role.Name).
		Attr("scopes", role.Scopes).
		Attr("createdAt", role.CreatedAt).
		Attr("updatedAt", role.UpdatedAt).
		Build()
}
