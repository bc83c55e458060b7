// Package testutil provides a fake school API and golden-file helpers for
// tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/devmarvs/schoolgate/auth"
)

// Seeded accounts of the fake school.
const (
	AdminEmail      = "admin@school.test"
	AdminPassword   = "admin-pass"
	TeacherEmail    = "teacher@school.test"
	TeacherPassword = "teacher-pass"
	StudentEmail    = "student@school.test"
	StudentPassword = "student-pass"
)

type account struct {
	principal auth.Principal
	hash      []byte
}

type failure struct {
	status int
	left   int
}

// SchoolServer is an in-process school API. Paths passed to its methods
// are relative to BaseURL, e.g. "/auth/login".
type SchoolServer struct {
	*httptest.Server
	BaseURL  string
	TokenTTL time.Duration
	Now      func() time.Time

	secret   []byte
	accounts map[string]account

	mu       sync.Mutex
	hits     map[string]int
	failures map[string]*failure
}

// NewSchoolServer starts a fake school API closed with t.
func NewSchoolServer(t testing.TB) *SchoolServer {
	t.Helper()
	s := &SchoolServer{
		TokenTTL: time.Hour,
		Now:      time.Now,
		secret:   []byte("school-test-secret"),
		accounts: map[string]account{},
		hits:     map[string]int{},
		failures: map[string]*failure{},
	}
	s.addAccount(t, auth.Principal{ID: 1, Email: AdminEmail, FirstName: "Ada", LastName: "Admin", Role: auth.RoleAdmin, Active: true}, AdminPassword)
	s.addAccount(t, auth.Principal{ID: 2, Email: TeacherEmail, FirstName: "Tess", LastName: "Teacher", Role: auth.RoleTeacher, Active: true}, TeacherPassword)
	s.addAccount(t, auth.Principal{ID: 3, Email: StudentEmail, FirstName: "Sam", LastName: "Student", Role: auth.RoleStudent, Active: true}, StudentPassword)

	s.Server = httptest.NewServer(http.StripPrefix("/api", s.routes()))
	s.BaseURL = s.Server.URL + "/api"
	t.Cleanup(s.Server.Close)
	return s
}

func (s *SchoolServer) addAccount(t testing.TB, principal auth.Principal, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	s.accounts[principal.Email] = account{principal: principal, hash: hash}
}

// Principal returns the seeded principal with role.
func (s *SchoolServer) Principal(role auth.Role) auth.Principal {
	for _, acc := range s.accounts {
		if acc.principal.Role == role {
			return acc.principal
		}
	}
	return auth.Principal{}
}

// IssueToken signs an HS256 token for principal that expires after ttl.
func (s *SchoolServer) IssueToken(principal auth.Principal, ttl time.Duration) string {
	now := s.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(principal.ID, 10),
		"role": string(principal.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return token
}

// FailNext makes the next n calls to path answer status.
func (s *SchoolServer) FailNext(path string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = &failure{status: status, left: n}
}

// Hits returns how many requests reached path.
func (s *SchoolServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests served.
func (s *SchoolServer) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

func (s *SchoolServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.login)
	mux.Handle("GET /auth/profile", s.authorized(nil, s.profile))
	mux.Handle("GET /admin/dashboard/stats", s.authorized([]auth.Role{auth.RoleAdmin}, s.stats))
	mux.Handle("GET /teachers/profile", s.authorized([]auth.Role{auth.RoleTeacher, auth.RoleAdmin}, s.teacherProfile))
	mux.Handle("GET /students/classroom/{classroom_id}", s.authorized([]auth.Role{auth.RoleTeacher}, s.classroomStudents))
	mux.Handle("POST /grades", s.authorized([]auth.Role{auth.RoleTeacher, auth.RoleAdmin}, s.addGrade))
	mux.Handle("GET /reports/{report_id}/download", s.authorized([]auth.Role{auth.RoleTeacher, auth.RoleAdmin}, s.downloadReport))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Route not found"})
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		scripted := s.failures[r.URL.Path]
		status := 0
		if scripted != nil && scripted.left > 0 {
			scripted.left--
			status = scripted.status
		}
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]any{"message": fmt.Sprintf("scripted %d", status)})
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (s *SchoolServer) authorized(roles []auth.Role, next func(http.ResponseWriter, *http.Request, auth.Principal)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Token is missing"})
			return
		}

		token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return s.secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(s.Now),
		)
		if err != nil || !token.Valid {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Token is invalid or expired"})
			return
		}
		subject, _ := token.Claims.GetSubject()
		principal, found := s.byID(subject)
		if !found || !principal.Active {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "User not found or inactive"})
			return
		}

		if len(roles) > 0 && principal.Role != auth.RoleAdmin && !auth.HasAnyRole(&principal, roles...) {
			writeJSON(w, http.StatusForbidden, map[string]any{"message": "Access denied"})
			return
		}
		next(w, r, principal)
	})
}

func (s *SchoolServer) byID(subject string) (auth.Principal, bool) {
	for _, acc := range s.accounts {
		if strconv.FormatInt(acc.principal.ID, 10) == subject {
			return acc.principal, true
		}
	}
	return auth.Principal{}, false
}

func (s *SchoolServer) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Email and password are required"})
		return
	}
	acc, ok := s.accounts[strings.ToLower(body.Email)]
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(body.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid email or password"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Login successful",
		"access_token": s.IssueToken(acc.principal, s.TokenTTL),
		"user":         acc.principal,
	})
}

func (s *SchoolServer) profile(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	writeJSON(w, http.StatusOK, map[string]any{"user": principal})
}

func (s *SchoolServer) stats(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	writeJSON(w, http.StatusOK, map[string]any{"teachers": 1, "students": 1, "classrooms": 2})
}

func (s *SchoolServer) teacherProfile(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	writeJSON(w, http.StatusOK, map[string]any{"user_id": principal.ID, "department": "Science"})
}

func (s *SchoolServer) classroomStudents(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	id, err := strconv.Atoi(r.PathValue("classroom_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid classroom id"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"classroom_id": id,
		"students": []map[string]any{
			{"id": 10, "first_name": "Amina", "last_name": "Otieno"},
			{"id": 11, "first_name": "Brian", "last_name": "Kamau"},
		},
	})
}

func (s *SchoolServer) addGrade(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var body struct {
		StudentID int     `json:"student_id"`
		Score     float64 `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid JSON"})
		return
	}
	if body.Score < 0 || body.Score > 20 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "Score must be between 0 and 20"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Grade added", "student_id": body.StudentID, "score": body.Score})
}

func (s *SchoolServer) downloadReport(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	w.Header().Set("Content-Type", "text/csv")
	fmt.Fprintf(w, "report,%s\nstudent,grade\nAmina,17\n", r.PathValue("report_id"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
