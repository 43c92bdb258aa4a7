// Package testbackend is an in-process fake of the school REST API. It speaks
// the same envelope as the real backend and lets tests script failures.
package testbackend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// Grant is a role grant as the backend serialises it.
type Grant struct {
	Role           string `json:"role"`
	AcademicYearID *int   `json:"academicYearId"`
}

// Account is a user that can log in.
type Account struct {
	ID        int
	Name      string
	Email     string
	Matricule string
	Password  string
	Grants    []Grant
	// OmitRoles drops userRoles from profile responses.
	OmitRoles bool
}

// Year is an academic year.
type Year struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	IsCurrent bool   `json:"isCurrent"`
	Status    string `json:"status"`
}

// Student is a student row. ClassName is left out of the response when empty.
type Student struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Matricule      string `json:"matricule"`
	ClassID        int    `json:"classId"`
	ClassName      string `json:"-"`
	AcademicYearID int    `json:"academicYearId"`
}

// Failure is a scripted response for one route.
type Failure struct {
	Status      int
	ContentType string
	Body        string
}

// Backend is the fake API. Exported fields may be changed between requests
// while holding no lock; tests are expected to configure it before use.
type Backend struct {
	mu       sync.Mutex
	accounts []*Account
	tokens   map[string]*Account
	years    map[string][]Year
	current  map[string]int

	Students      []Student
	Fees          []map[string]any
	Personnel     []map[string]any
	Timetables    map[int][]map[string]any
	Announcements []map[string]any

	failures map[string]Failure
	hits     map[string]int
	engine   *gin.Engine
}

// New creates an empty backend.
func New() *Backend {
	gin.SetMode(gin.TestMode)

	b := &Backend{
		tokens:     make(map[string]*Account),
		years:      make(map[string][]Year),
		current:    make(map[string]int),
		Timetables: make(map[int][]map[string]any),
		failures:   make(map[string]Failure),
		hits:       make(map[string]int),
	}
	b.engine = b.routes()
	return b
}

// Start serves b on an httptest server and returns the API base URL.
func Start(tb testing.TB, b *Backend) string {
	tb.Helper()
	server := httptest.NewServer(b.Handler())
	tb.Cleanup(server.Close)
	return server.URL + "/api"
}

// Handler returns the HTTP handler.
func (b *Backend) Handler() http.Handler {
	return b.engine
}

// AddAccount registers an account.
func (b *Backend) AddAccount(a *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts = append(b.accounts, a)
}

// IssueToken makes token valid for a.
func (b *Backend) IssueToken(token string, a *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[token] = a
}

// RevokeTokens invalidates every issued token.
func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]*Account)
}

// SetYears sets the academic years offered to role.
func (b *Backend) SetYears(role string, currentID int, years ...Year) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.years[role] = years
	b.current[role] = currentID
}

// Fail makes every request to "METHOD /path" (gin route pattern, without
// the /api prefix) answer with f until Recover is called.
func (b *Backend) Fail(route string, f Failure) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = f
}

// Recover removes a scripted failure.
func (b *Backend) Recover(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// Hits returns how many requests reached route.
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

func (b *Backend) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.Use(b.track())
	api.POST("/auth/login", b.login)

	authed := api.Group("")
	authed.Use(b.requireToken())
	{
		authed.GET("/auth/me", b.me)
		authed.GET("/academic-years/available-for-role", b.availableYears)
		authed.GET("/students", b.students)
		authed.GET("/fees", b.list(func() []map[string]any { return b.Fees }))
		authed.GET("/users/personnel", b.list(func() []map[string]any { return b.Personnel }))
		authed.GET("/announcements", b.list(func() []map[string]any { return b.Announcements }))
		authed.GET("/timetables/class/:id", b.timetable)
		authed.GET("/exports/:kind", b.export)
		authed.DELETE("/students/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}
	return r
}

// track counts hits and serves scripted failures.
func (b *Backend) track() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.Request.Method + " " + strings.TrimPrefix(c.FullPath(), "/api")

		b.mu.Lock()
		b.hits[route]++
		failure, failing := b.failures[route]
		b.mu.Unlock()

		if failing {
			contentType := failure.ContentType
			if contentType == "" {
				contentType = "application/json"
			}
			c.Data(failure.Status, contentType, []byte(failure.Body))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (b *Backend) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

		b.mu.Lock()
		account, ok := b.tokens[token]
		b.mu.Unlock()

		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			return
		}
		c.Set("account", account)
		c.Next()
	}
}

func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func profile(a *Account) gin.H {
	user := gin.H{
		"id":        a.ID,
		"name":      a.Name,
		"email":     a.Email,
		"matricule": a.Matricule,
		"status":    "active",
	}
	if !a.OmitRoles {
		grants := a.Grants
		if grants == nil {
			grants = []Grant{}
		}
		user["userRoles"] = grants
	}
	return user
}

func (b *Backend) login(c *gin.Context) {
	var req struct {
		Email     string `json:"email"`
		Matricule string `json:"matricule"`
		Password  string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Password is required"})
		return
	}

	b.mu.Lock()
	var account *Account
	for _, a := range b.accounts {
		matches := (req.Email != "" && a.Email == req.Email) || (req.Matricule != "" && a.Matricule == req.Matricule)
		if matches && a.Password == req.Password {
			account = a
			break
		}
	}
	var token string
	if account != nil {
		token = fmt.Sprintf("token-%d-%d", account.ID, len(b.tokens)+1)
		b.tokens[token] = account
	}
	b.mu.Unlock()

	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
		return
	}
	respond(c, gin.H{"token": token, "expiresIn": "1d", "user": profile(account)})
}

func (b *Backend) me(c *gin.Context) {
	account := c.MustGet("account").(*Account)
	respond(c, profile(account))
}

func (b *Backend) availableYears(c *gin.Context) {
	role := c.Query("role")

	b.mu.Lock()
	years := append([]Year{}, b.years[role]...)
	current, hasCurrent := b.current[role]
	b.mu.Unlock()

	data := gin.H{"academicYears": years, "userHasAccessTo": gin.H{"role": role}}
	if hasCurrent && current != 0 {
		data["currentAcademicYearId"] = current
	}
	respond(c, data)
}

func (b *Backend) students(c *gin.Context) {
	page, limit := pagination(c)
	search := strings.ToLower(c.Query("search"))
	classID, _ := strconv.Atoi(c.Query("classId"))
	yearID, _ := strconv.Atoi(c.Query("academicYearId"))

	var rows []gin.H
	for _, s := range b.Students {
		if search != "" && !strings.Contains(strings.ToLower(s.Name), search) {
			continue
		}
		if classID != 0 && s.ClassID != classID {
			continue
		}
		if yearID != 0 && s.AcademicYearID != yearID {
			continue
		}
		row := gin.H{"id": s.ID, "name": s.Name, "matricule": s.Matricule, "classId": s.ClassID, "academicYearId": s.AcademicYearID}
		if s.ClassName != "" {
			row["class"] = gin.H{"id": s.ClassID, "name": s.ClassName}
		}
		rows = append(rows, row)
	}
	paginate(c, rows, page, limit)
}

func (b *Backend) list(source func() []map[string]any) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit := pagination(c)
		var rows []gin.H
		for _, item := range source() {
			rows = append(rows, gin.H(item))
		}
		paginate(c, rows, page, limit)
	}
}

func (b *Backend) timetable(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid class id"})
		return
	}
	slots, found := b.Timetables[id]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Timetable not found"})
		return
	}
	respond(c, slots)
}

func (b *Backend) export(c *gin.Context) {
	kind := c.Param("kind")
	switch c.DefaultQuery("format", "xlsx") {
	case "csv":
		var buf bytes.Buffer
		buf.WriteString("id,name,matricule\n")
		for _, s := range b.Students {
			fmt.Fprintf(&buf, "%d,%s,%s\n", s.ID, s.Name, s.Matricule)
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, kind))
		c.Data(http.StatusOK, "text/csv", buf.Bytes())
	case "xlsx":
		data, err := b.workbook(kind)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, kind))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	default:
		c.String(http.StatusBadRequest, "Unsupported export format")
	}
}

func (b *Backend) workbook(kind string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := strings.ToUpper(kind[:1]) + kind[1:]
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	header := []any{"ID", "Name", "Matricule"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, s := range b.Students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{s.ID, s.Name, s.Matricule}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	return page, limit
}

func paginate(c *gin.Context, rows []gin.H, page, limit int) {
	total := len(rows)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	data := rows[start:end]
	if data == nil {
		data = []gin.H{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"meta": gin.H{
			"total":      total,
			"page":       page,
			"limit":      limit,
			"totalPages": (total + limit - 1) / limit,
		},
	})
}

// MustJSON encodes v for use in Failure bodies.
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
