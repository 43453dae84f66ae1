package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/esign-platform/internal/session"
	"github.com/upb/esign-platform/internal/storage"
)

const testToken = "jwt-1"

var (
	acme = map[string]any{"id": "org-1", "name": "Acme", "slug": "acme", "role": "admin"}
	beta = map[string]any{"id": "org-2", "name": "Beta", "slug": "beta", "role": "member"}
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func failure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// newFakeAPI serves the subset of the API the CLI calls.
func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testToken {
				failure(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			next(w, r)
		}
	}
	tenant := func(next http.HandlerFunc) http.HandlerFunc {
		return authed(func(w http.ResponseWriter, r *http.Request) {
			switch r.Header.Get("X-Tenant-Id") {
			case "org-1", "org-2":
				next(w, r)
			case "":
				failure(w, http.StatusBadRequest, "X-Tenant-Id header is required")
			default:
				failure(w, http.StatusForbidden, "Not a member of this organization")
			}
		})
	}

	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "s3cret" {
			failure(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		ok(w, http.StatusOK, map[string]any{
			"token":        testToken,
			"token_type":   "Bearer",
			"user":         map[string]any{"id": "u1", "email": body["email"], "name": "Ana"},
			"organization": acme,
		})
	})
	r.Post("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		ok(w, http.StatusCreated, map[string]any{
			"token":        testToken,
			"user":         map[string]any{"id": "u2", "email": body["email"], "name": body["name"]},
			"organization": map[string]any{"id": "org-9", "name": body["organization_name"]},
		})
	})
	r.Post("/api/auth/google/mobile", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["id_token"] != "google-id" {
			failure(w, http.StatusUnauthorized, "Invalid Google credential")
			return
		}
		ok(w, http.StatusOK, map[string]any{
			"token": testToken,
			"user":  map[string]any{"id": "u3", "email": "g@example.com"},
		})
	})
	r.Post("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
	})
	r.Get("/api/me", authed(func(w http.ResponseWriter, r *http.Request) {
		ok(w, http.StatusOK, map[string]any{
			"id": "u1", "email": "ana@example.com", "name": "Ana",
			"organizations": []any{acme, beta},
		})
	}))
	r.Get("/api/organizations", authed(func(w http.ResponseWriter, r *http.Request) {
		ok(w, http.StatusOK, []any{acme, beta})
	}))
	r.Post("/api/organizations", authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		ok(w, http.StatusCreated, map[string]any{"id": "org-3", "name": body["name"], "slug": "acme-legal"})
	}))
	r.Get("/api/documents", tenant(func(w http.ResponseWriter, r *http.Request) {
		ok(w, http.StatusOK, map[string]any{
			"data": []any{map[string]any{
				"id": "doc-1", "title": "NDA", "status": "draft",
				"owner_id": "u1", "created_at": "2026-01-02T03:04:05Z",
			}},
			"total": 1,
		})
	}))
	r.Post("/api/documents", tenant(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		ok(w, http.StatusCreated, map[string]any{"id": "doc-2", "title": body["title"], "status": "draft"})
	}))
	r.Post("/api/documents/{id}/invitations", tenant(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "doc-1" {
			failure(w, http.StatusNotFound, "document not found")
			return
		}
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		ok(w, http.StatusCreated, map[string]any{
			"id": "inv-1", "email": body["email"], "status": "pending",
			"document_id": "doc-1", "expires_at": "2026-01-09T00:00:00Z",
		})
	}))
	r.Get("/api/activity", tenant(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Tenant-Id") != "org-1" {
			failure(w, http.StatusForbidden, "Insufficient permissions")
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		ok(w, http.StatusOK, map[string]any{
			"data": []any{
				map[string]any{
					"id": "a1", "action": "invitation_sent", "resource_type": "invitation",
					"details": map[string]any{"email": "bob@example.com"}, "timestamp": "2026-01-03T10:00:00Z",
				},
				map[string]any{
					"id": "a2", "action": "document_created", "resource_type": "document",
					"timestamp": "2026-01-02T03:04:05Z",
				},
			},
			"total": 2,
		})
	}))
	r.Get("/api/invitations/lookup", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("email") != "bob@example.com" || q.Get("token") != "t1" {
			failure(w, http.StatusNotFound, "invitation not found")
			return
		}
		ok(w, http.StatusOK, map[string]any{
			"id": "inv-1", "email": "bob@example.com", "status": "pending",
			"document_id": "doc-1", "document_title": "NDA", "organization_name": "Beta",
		})
	})
	r.Post("/api/invitations/accept", authed(func(w http.ResponseWriter, r *http.Request) {
		ok(w, http.StatusOK, beta)
	}))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	api   string
	state string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := newFakeAPI(t)
	return &harness{api: srv.URL, state: filepath.Join(t.TempDir(), "state.json")}
}

func (h *harness) run(args ...string) (string, error) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--api", h.api, "--state", h.state}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(args...)
	require.NoError(t, err, out)
	return out
}

func (h *harness) session() *session.Store {
	sess := session.NewStore(storage.NewFileStore(h.state))
	sess.Initialize()
	return sess
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	h.mustRun(t, "login", "--email", "ana@example.com", "--password", "s3cret")
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()
	want := []string{"login", "register", "google", "logout", "me", "orgs", "documents", "invite", "invitation", "route", "activity"}

	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}

	for _, flag := range []string{"api", "state", "format", "debug"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestLogin(t *testing.T) {
	t.Run("stores token and organization", func(t *testing.T) {
		h := newHarness(t)
		out := h.mustRun(t, "login", "--email", "ana@example.com", "--password", "s3cret")

		assert.Contains(t, out, "Signed in as Ana")
		assert.Contains(t, out, "Current organization: Acme (org-1)")

		sess := h.session()
		assert.Equal(t, testToken, sess.Token())
		org, err := sess.CurrentOrganization()
		require.NoError(t, err)
		assert.Equal(t, "org-1", org.ID)
	})

	t.Run("password from environment", func(t *testing.T) {
		h := newHarness(t)
		t.Setenv(EnvPassword, "s3cret")
		h.mustRun(t, "login", "--email", "ana@example.com")
		assert.True(t, h.session().IsAuthenticated())
	})

	t.Run("server message is shown", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.run("login", "--email", "ana@example.com", "--password", "wrong")
		require.Error(t, err)
		assert.Equal(t, "Login failed: Invalid email or password", err.Error())
		assert.False(t, h.session().IsAuthenticated())
	})

	t.Run("missing email", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.run("login", "--password", "s3cret")
		assert.EqualError(t, err, "--email is required")
	})
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(t, "register", "--name", "Carla", "--email", "carla@example.com", "--password", "s3cret", "--organization", "Carla Co")

	assert.Contains(t, out, "Signed in as Carla")
	org, err := h.session().CurrentOrganization()
	require.NoError(t, err)
	assert.Equal(t, "org-9", org.ID)

	_, err = h.run("register", "--email", "x@example.com")
	assert.Error(t, err)
}

func TestGoogle(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("google")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id_token")

	out := h.mustRun(t, "google", "--id-token", "google-id")
	assert.Contains(t, out, "Signed in as g@example.com")
	assert.True(t, h.session().IsAuthenticated())
}

func TestMe(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("me")
	assert.EqualError(t, err, "not signed in (run esignctl login)")

	h.login(t)
	out := h.mustRun(t, "me")
	assert.Contains(t, out, "Ana <ana@example.com>")
	assert.Contains(t, out, "Beta")

	lines := strings.Split(out, "\n")
	var current string
	for _, line := range lines {
		if strings.HasPrefix(line, "*") {
			current = line
		}
	}
	assert.Contains(t, current, "org-1")
}

func TestOrgs(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	t.Run("list as json", func(t *testing.T) {
		out := h.mustRun(t, "orgs", "list", "-o", "json")
		var orgs []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &orgs))
		require.Len(t, orgs, 2)
		assert.Equal(t, "acme", orgs[0]["slug"])
	})

	t.Run("use by slug", func(t *testing.T) {
		out := h.mustRun(t, "orgs", "use", "beta")
		assert.Contains(t, out, "Using organization Beta (org-2)")

		org, err := h.session().CurrentOrganization()
		require.NoError(t, err)
		assert.Equal(t, "org-2", org.ID)
		assert.Equal(t, "Beta", org.Name)
	})

	t.Run("use unknown", func(t *testing.T) {
		_, err := h.run("orgs", "use", "nope")
		assert.EqualError(t, err, `you are not a member of organization "nope"`)
	})

	t.Run("create and use", func(t *testing.T) {
		out := h.mustRun(t, "orgs", "create", "--name", "Acme Legal", "--use")
		assert.Contains(t, out, "Created organization Acme Legal (org-3)")

		org, err := h.session().CurrentOrganization()
		require.NoError(t, err)
		assert.Equal(t, "org-3", org.ID)
	})
}

func TestDocuments(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("documents", "list")
	assert.EqualError(t, err, "not signed in (run esignctl login)")

	h.login(t)
	require.NoError(t, h.session().Storage().Delete(storage.KeyCurrentOrganization))

	_, err = h.run("documents", "list")
	assert.EqualError(t, err, "no current organization (run esignctl orgs use)")

	h.mustRun(t, "orgs", "use", "acme")

	out := h.mustRun(t, "documents", "list")
	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "NDA")
	assert.Contains(t, out, "2026-01-02 03:04 UTC")

	out = h.mustRun(t, "docs", "create", "Master services agreement")
	assert.Contains(t, out, `Created document "Master services agreement" (doc-2)`)
}

func TestDocuments_TenantRejected(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	require.NoError(t, h.session().SetCurrentOrganization(session.Organization{ID: "org-x"}))

	_, err := h.run("documents", "list")
	assert.EqualError(t, err, "Failed to list documents: Not a member of this organization")
}

func TestActivity(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.mustRun(t, "orgs", "use", "acme")

	out := h.mustRun(t, "activity", "--limit", "2")
	assert.Contains(t, out, "TIME")
	assert.Contains(t, out, "2026-01-03 10:00 UTC")
	assert.Contains(t, out, "invitation_sent")
	assert.Contains(t, out, `{"email":"bob@example.com"}`)
	assert.Contains(t, out, "document_created")

	h.mustRun(t, "orgs", "use", "beta")
	_, err := h.run("activity", "--limit", "2")
	assert.EqualError(t, err, "Failed to load activity: Insufficient permissions")
}

func TestInvite(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out := h.mustRun(t, "invite", "doc-1", "bob@example.com")
	assert.Contains(t, out, "Invited bob@example.com (expires 2026-01-09 00:00 UTC)")

	_, err := h.run("invite", "doc-404", "bob@example.com")
	assert.EqualError(t, err, "Failed to send invitation: document not found")
}

func TestInvitation(t *testing.T) {
	h := newHarness(t)
	link := "https://app.example.com/invite?email=bob%40example.com&token=t1"

	t.Run("show from link without session", func(t *testing.T) {
		out := h.mustRun(t, "invitation", "show", link)
		assert.Contains(t, out, "Invitation for bob@example.com")
		assert.Contains(t, out, "Organization: Beta")
		assert.Contains(t, out, "Document: NDA")
	})

	t.Run("show with flags as yaml", func(t *testing.T) {
		out := h.mustRun(t, "invitation", "show", "--email", "bob@example.com", "--token", "t1", "-o", "yaml")
		assert.Contains(t, out, "organization_name: Beta")
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := h.run("invitation", "show", "--email", "bob@example.com", "--token", "bad")
		assert.EqualError(t, err, "Invitation not available: invitation not found")
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := h.run("invitation", "show", "--email", "bob@example.com")
		assert.Error(t, err)
	})

	t.Run("accept switches organization", func(t *testing.T) {
		_, err := h.run("invitation", "accept", link)
		assert.EqualError(t, err, "not signed in (run esignctl login)")

		h.login(t)
		out := h.mustRun(t, "invitation", "accept", link)
		assert.Contains(t, out, "Joined Beta (org-2)")

		org, err := h.session().CurrentOrganization()
		require.NoError(t, err)
		assert.Equal(t, "org-2", org.ID)
	})
}

func TestRoute(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name     string
		signedIn bool
		url      string
		want     string
	}{
		{name: "protected while signed out", url: "/dashboard", want: "redirect /dashboard -> /login"},
		{name: "guest page while signed out", url: "/login", want: "allow /login"},
		{name: "guest page while signed in", signedIn: true, url: "/login", want: "redirect /login -> /dashboard"},
		{name: "invitation link while signed in", signedIn: true, url: "https://app.example.com/invite?email=a%40b.com&token=t", want: "allow /invite"},
		{name: "oauth callback while signed out", url: "/documents?auth_code=abc", want: "allow /documents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.signedIn {
				require.NoError(t, h.session().Login(testToken))
			} else {
				require.NoError(t, h.session().Logout())
			}
			out := h.mustRun(t, "route", tt.url)
			assert.Equal(t, tt.want+"\n", out)
		})
	}

	t.Run("json", func(t *testing.T) {
		require.NoError(t, h.session().Logout())
		out := h.mustRun(t, "route", "/organizations", "-o", "json")

		var got routeResult
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, routeResult{Path: "/organizations", Route: "Organizations", Action: "redirect", Redirect: "/login"}, got)
	})
}

func TestLogout(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "logout")
	assert.Contains(t, out, "Not signed in")

	h.login(t)
	out = h.mustRun(t, "logout")
	assert.Contains(t, out, "Signed out")

	sess := h.session()
	assert.False(t, sess.IsAuthenticated())
	_, err := sess.CurrentOrganization()
	assert.ErrorIs(t, err, session.ErrNoOrganization)
}

func TestUnknownFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("route", "/login", "-o", "xml")
	assert.EqualError(t, err, "unknown format: xml (supported: text, json, yaml)")
}
