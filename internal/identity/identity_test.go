package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stemly/regbot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Token: "test-token", Timeout: time.Second}, srv.Client())
}

func TestFindByPhone(t *testing.T) {
	t.Run("found with profile", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "+998901234567", r.URL.Query().Get("phone"))
			_ = json.NewEncoder(w).Encode(Record{
				User:    User{ID: "u-1", Phone: "+998901234567"},
				Profile: &Profile{FirstName: "Timur", LastName: "Karimov"},
			})
		})

		res := c.FindByPhone(context.Background(), "998901234567")
		require.Equal(t, Found, res.Outcome)
		assert.Equal(t, "u-1", res.Record.User.ID)
		assert.Equal(t, "Timur Karimov", res.Record.FullName())
	})

	t.Run("found without profile has no name", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(Record{User: User{ID: "u-2"}})
		})

		res := c.FindByPhone(context.Background(), "+1234567")
		require.Equal(t, Found, res.Outcome)
		assert.Empty(t, res.Record.FullName())
	})

	t.Run("miss is not an error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		res := c.FindByPhone(context.Background(), "+1234567")
		assert.Equal(t, NotFound, res.Outcome)
		assert.Nil(t, res.Err)
	})

	t.Run("server error maps to Failed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		res := c.FindByPhone(context.Background(), "+1234567")
		assert.Equal(t, Failed, res.Outcome)
		assert.Error(t, res.Err)
	})
}

func TestUpsert(t *testing.T) {
	var got Payload
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Record{User: User{ID: "u-9"}})
	})

	rec, err := c.Upsert(context.Background(), ParentPayload(domain.ParentProfile{
		TelegramID: 42,
		FirstName:  "Anna",
		LastName:   "Ivanova",
		Phone:      "1234567890",
	}))
	require.NoError(t, err)
	assert.Equal(t, "u-9", rec.User.ID)
	assert.Equal(t, int64(42), got.TgID)
	assert.Equal(t, "+1234567890", got.Phone)
	assert.Equal(t, domain.RoleParent, got.Profile.Role)
	assert.Empty(t, got.Email)
}

func TestParentPayloadSkippedEmail(t *testing.T) {
	p := ParentPayload(domain.ParentProfile{
		FirstName: "Anna",
		LastName:  "Ivanova",
		Email:     domain.EmailSkipped,
	})
	assert.Empty(t, p.Email, "skip sentinel never reaches the API")
}

func TestChildPayload(t *testing.T) {
	child := domain.ChildProfile{FirstName: "Malika", LastName: "Karimova", DOB: "17.05.2014"}

	t.Run("parent phone wins", func(t *testing.T) {
		p := ChildPayload(child, domain.ParentProfile{Phone: "998901234567", Email: "p@example.com"}, "school.local")
		assert.Equal(t, "+998901234567", p.Phone)
		assert.Empty(t, p.Email)
		assert.Equal(t, "2014-05-17", p.Profile.BDate)
		assert.Equal(t, domain.RoleStudent, p.Profile.Role)
	})

	t.Run("parent email second", func(t *testing.T) {
		p := ChildPayload(child, domain.ParentProfile{Email: "p@example.com"}, "school.local")
		assert.Empty(t, p.Phone)
		assert.Equal(t, "p@example.com", p.Email)
	})

	t.Run("synthetic email last resort", func(t *testing.T) {
		p := ChildPayload(child, domain.ParentProfile{Email: domain.EmailSkipped}, "school.local")
		assert.Regexp(t, regexp.MustCompile(`^child_[0-9a-f]{8}@school\.local$`), p.Email)
	})
}
