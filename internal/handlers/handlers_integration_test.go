package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pokedex/internal/catalog"
	"pokedex/internal/database"
	"pokedex/internal/repositories"
	"pokedex/internal/server"
	"pokedex/internal/services"
	"pokedex/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testJWTSecret = "test_jwt_secret"

type testEnv struct {
	app       *fiber.App
	uploadDir string
}

// fakeUpstream serves a tiny slice of the public catalog.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/pokemon/", func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/pokemon/") {
		case "pikachu", "25":
			fmt.Fprint(w, `{"id":25,"name":"pikachu","height":4,"weight":60,
				"sprites":{"front_default":"https://img/25.png"},
				"types":[{"slot":1,"type":{"name":"electric"}}],
				"abilities":[{"ability":{"name":"static"}}],
				"stats":[{"base_stat":35,"stat":{"name":"hp"}}]}`)
		case "ditto":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.Error(w, "Not Found", http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setupApp builds the full app on an in-memory SQLite database and a temp upload dir.
func setupApp(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.OpenGORM("sqlite", dsn, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseGORM(db) })

	uploadDir := t.TempDir()
	images, err := storage.NewDiskStore(uploadDir)
	require.NoError(t, err)

	accountRepo := repositories.NewGORMAccountRepository(db)
	authService := services.NewAuthService(accountRepo, services.AuthConfig{Secret: testJWTSecret, TokenTTL: time.Hour}, nil, log)
	favoritesService := services.NewFavoritesService(accountRepo, nil, log)
	profileService := services.NewProfileService(accountRepo, images, nil, log)
	catalogClient := catalog.NewClient(catalog.Config{BaseURL: fakeUpstream(t).URL}, catalog.NewMemoryCache(), log)

	app := server.New(server.Dependencies{
		Auth:      authService,
		Favorites: favoritesService,
		Profile:   profileService,
		Catalog:   catalogClient,
		Log:       log,
		Options:   server.Options{UploadDir: uploadDir},
	})
	return &testEnv{app: app, uploadDir: uploadDir}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.ContentLength != 0 {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}

func (e *testEnv) registerAndLogin(t *testing.T, username, email string) string {
	t.Helper()
	status, _ := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username, "email": email, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	require.Equal(t, http.StatusOK, status)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func favoriteIDs(t *testing.T, body map[string]interface{}) []float64 {
	t.Helper()
	user, ok := body["user"].(map[string]interface{})
	require.True(t, ok, "response has no user: %v", body)
	list, ok := user["favorites"].([]interface{})
	require.True(t, ok, "favorites must be an array: %v", user["favorites"])
	ids := make([]float64, 0, len(list))
	for _, f := range list {
		ids = append(ids, f.(map[string]interface{})["pokemonId"].(float64))
	}
	return ids
}

func TestFavoritesLifecycle(t *testing.T) {
	env := setupApp(t)

	status, body := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ash", "email": "ash@x.com", "password": "pw123",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "ash", user["username"])
	assert.NotContains(t, user, "password")
	assert.Equal(t, []interface{}{}, user["favorites"])

	status, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ash@x.com", "password": "pw123",
	})
	require.Equal(t, http.StatusOK, status)
	token := body["token"].(string)

	status, body = env.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, favoriteIDs(t, body))

	status, body = env.do(t, http.MethodPost, "/api/favorites/add", token, map[string]interface{}{
		"pokemonId": 25, "pokemonName": "pikachu", "image": "https://img/25.png",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []float64{25}, favoriteIDs(t, body))

	// The id may arrive as a string; it is the same pokemon.
	status, body = env.do(t, http.MethodPost, "/api/favorites/add", token, map[string]interface{}{
		"pokemonId": "25", "pokemonName": "pikachu",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Pokemon already in favorites", body["message"])

	status, body = env.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []float64{25}, favoriteIDs(t, body))

	status, body = env.do(t, http.MethodPost, "/api/favorites/remove", token, map[string]interface{}{"pokemonId": 25})
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, favoriteIDs(t, body))

	status, body = env.do(t, http.MethodPost, "/api/favorites/remove", token, map[string]interface{}{"pokemonId": 25})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Pokemon not found in favorites", body["message"])
}

func TestFavorites_OrderPreservedAndListed(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "misty", "misty@example.com")

	for _, id := range []int{7, 1, 4} {
		status, _ := env.do(t, http.MethodPost, "/api/favorites/add", token, map[string]interface{}{
			"pokemonId": id, "pokemonName": fmt.Sprintf("p%d", id),
		})
		require.Equal(t, http.StatusOK, status)
	}
	status, body := env.do(t, http.MethodPost, "/api/favorites/remove", token, map[string]interface{}{"pokemonId": 1})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []float64{7, 4}, favoriteIDs(t, body))

	status, body = env.do(t, http.MethodGet, "/api/favorites", token, nil)
	require.Equal(t, http.StatusOK, status)
	list := body["favorites"].([]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, "p7", list[0].(map[string]interface{})["pokemonName"])
	assert.Equal(t, "p4", list[1].(map[string]interface{})["pokemonName"])
}

func TestFavorites_WholeNumberIDForms(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "tracey", "tracey@example.com")

	status, body := env.do(t, http.MethodPost, "/api/favorites/add", token,
		json.RawMessage(`{"pokemonId":25.0,"pokemonName":"pikachu"}`))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []float64{25}, favoriteIDs(t, body))

	status, _ = env.do(t, http.MethodPost, "/api/favorites/add", token,
		json.RawMessage(`{"pokemonId":2.5e1,"pokemonName":"pikachu"}`))
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(t, http.MethodPost, "/api/favorites/add", token,
		json.RawMessage(`{"pokemonId":25.5,"pokemonName":"pikachu"}`))
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodPost, "/api/favorites/remove", token,
		json.RawMessage(`{"pokemonId":25.0}`))
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, favoriteIDs(t, body))
}

func TestFavorites_Validation(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "brock", "brock@example.com")

	tests := []struct {
		name string
		path string
		body map[string]interface{}
	}{
		{"missing id", "/api/favorites/add", map[string]interface{}{"pokemonName": "pikachu"}},
		{"missing name", "/api/favorites/add", map[string]interface{}{"pokemonId": 25}},
		{"blank name", "/api/favorites/add", map[string]interface{}{"pokemonId": 25, "pokemonName": "   "}},
		{"negative id", "/api/favorites/add", map[string]interface{}{"pokemonId": -3, "pokemonName": "x"}},
		{"remove without id", "/api/favorites/remove", map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, body["error"])
		})
	}

	status, body := env.do(t, http.MethodGet, "/api/favorites", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["favorites"])
}

func TestAuth_RegisterErrors(t *testing.T) {
	env := setupApp(t)
	env.registerAndLogin(t, "gary", "gary@example.com")

	status, body := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "gary2", "email": "gary@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User already exists", body["message"])

	status, _ = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "gary", "email": "other@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", body["message"])

	status, _ = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "y", "email": "not-an-email", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuth_LoginAndGate(t *testing.T) {
	env := setupApp(t)
	env.registerAndLogin(t, "oak", "oak@example.com")

	status, body := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "oak@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid credentials", body["message"])

	status, unknown := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, body["message"], unknown["message"])

	status, body = env.do(t, http.MethodGet, "/api/favorites", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authorization header is required", body["message"])

	status, _ = env.do(t, http.MethodGet, "/api/auth/profile", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProfile_UploadPicture(t *testing.T) {
	env := setupApp(t)
	token := env.registerAndLogin(t, "nurse", "joy@example.com")

	upload := func(field, filename string, content []byte) (int, map[string]interface{}) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if field != "" {
			part, err := w.CreateFormFile(field, filename)
			require.NoError(t, err)
			_, err = part.Write(content)
			require.NoError(t, err)
		} else {
			require.NoError(t, w.WriteField("note", "no file"))
		}
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/profile/picture", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		return env.send(t, req)
	}

	status, body := upload("profilePic", "avatar.png", []byte("\x89PNG fake"))
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]interface{})
	ref, _ := user["profileImage"].(string)
	require.NotEmpty(t, ref)
	assert.True(t, strings.HasSuffix(ref, ".png"))

	stored, err := os.ReadFile(filepath.Join(env.uploadDir, ref))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG fake"), stored)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/uploads/"+ref, nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, body = upload("profilePic", "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Only image files are allowed", body["message"])

	status, body = upload("", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "No file uploaded", body["message"])
}

func TestCatalogRoutes(t *testing.T) {
	env := setupApp(t)

	status, body := env.do(t, http.MethodGet, "/api/pokemon/Pikachu", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pikachu", body["name"])
	assert.Equal(t, float64(25), body["id"])

	status, _ = env.do(t, http.MethodGet, "/api/pokemon/missingno", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, http.MethodGet, "/api/pokemon/ditto", "", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "Pokemon catalog is unavailable", body["message"])
	assert.NotContains(t, body["error"], "boom")

	status, _ = env.do(t, http.MethodGet, "/api/pokemon?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = env.do(t, http.MethodGet, "/api/pokemon?limit=500", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, "/api/pokemon/compare?first=pikachu", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodGet, "/api/pokemon/search?q=a", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["results"])
}

func TestHealth(t *testing.T) {
	env := setupApp(t)
	status, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}
