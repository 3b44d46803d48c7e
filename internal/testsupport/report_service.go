// Package testsupport runs an in-process stand-in for the inventory report
// service: item CRUD under /api/items and report endpoints under /api/reports.
package testsupport

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

// Item mirrors the service's JSON shape.
type Item struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
}

// RecordedRequest is one call seen by the fake service.
type RecordedRequest struct {
	Method string
	Path   string
	Format string
}

// ReportService is a fake report service backed by httptest.
type ReportService struct {
	Server *httptest.Server

	mu        sync.Mutex
	items     map[int64]Item
	nextID    int64
	requests  []RecordedRequest
	status    map[string]int // keyed by mode ("generate", "preview", "sample", "items")
	bodies    map[string][]byte
	types     map[string]string
	omitType  bool
	hold      chan struct{}
	holdCount int
}

// StartReportService starts a fake service; it is closed via t.Cleanup.
func StartReportService(t *testing.T) *ReportService {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := &ReportService{
		items:  make(map[int64]Item),
		nextID: 1,
		status: make(map[string]int),
		bodies: make(map[string][]byte),
		types:  make(map[string]string),
	}

	engine := gin.New()
	api := engine.Group("/api")
	api.GET("/items", svc.listItems)
	api.GET("/items/:id", svc.getItem)
	api.POST("/items", svc.createItem)
	api.PUT("/items/:id", svc.updateItem)
	api.DELETE("/items/:id", svc.deleteItem)
	api.GET("/reports/:mode", svc.report)

	svc.Server = httptest.NewServer(engine)
	t.Cleanup(svc.Server.Close)
	return svc
}

// URL returns the base URL of the fake service.
func (s *ReportService) URL() string {
	return s.Server.URL
}

// Seed inserts items with fixed IDs.
func (s *ReportService) Seed(items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		it.Total = float64(it.Quantity) * it.Price
		s.items[it.ID] = it
		if it.ID >= s.nextID {
			s.nextID = it.ID + 1
		}
	}
}

// FailWith makes every call of mode ("generate", "preview", "sample" or "items") answer status.
func (s *ReportService) FailWith(mode string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[mode] = status
}

// SetBody sets the report body returned for a format.
func (s *ReportService) SetBody(format string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[format] = body
}

// SetContentType overrides the Content-Type returned for a format.
func (s *ReportService) SetContentType(format, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[format] = contentType
}

// OmitContentType makes report responses carry no Content-Type header.
func (s *ReportService) OmitContentType() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitType = true
}

// Hold blocks report responses until the returned release func is called.
func (s *ReportService) Hold() (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.hold = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.hold = nil
			s.mu.Unlock()
			close(ch)
		})
	}
}

// HeldCount returns how many report requests have reached the hold point.
func (s *ReportService) HeldCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holdCount
}

// Requests returns a copy of every request seen so far.
func (s *ReportService) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// ReportRequests returns only report endpoint requests.
func (s *ReportService) ReportRequests() []RecordedRequest {
	var out []RecordedRequest
	for _, r := range s.Requests() {
		if len(r.Path) > len("/api/reports/") && r.Path[:len("/api/reports/")] == "/api/reports/" {
			out = append(out, r)
		}
	}
	return out
}

// Items returns the stored items ordered by ID.
func (s *ReportService) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *ReportService) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Format: c.Query("format"),
	})
	s.mu.Unlock()
}

func (s *ReportService) failure(mode string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[mode]
}

func (s *ReportService) sortedLocked() []Item {
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *ReportService) listItems(c *gin.Context) {
	s.record(c)
	if code := s.failure("items"); code != 0 {
		c.JSON(code, gin.H{"error": "forced failure"})
		return
	}
	c.JSON(http.StatusOK, s.Items())
}

func (s *ReportService) getItem(c *gin.Context) {
	s.record(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	it, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *ReportService) createItem(c *gin.Context) {
	s.record(c)
	if code := s.failure("items"); code != 0 {
		c.JSON(code, gin.H{"error": "forced failure"})
		return
	}
	var in Item
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	in.ID = s.nextID
	s.nextID++
	in.Total = float64(in.Quantity) * in.Price
	s.items[in.ID] = in
	s.mu.Unlock()
	c.JSON(http.StatusOK, in)
}

func (s *ReportService) updateItem(c *gin.Context) {
	s.record(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	var in Item
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		c.Status(http.StatusNotFound)
		return
	}
	in.ID = id
	in.Total = float64(in.Quantity) * in.Price
	s.items[id] = in
	c.JSON(http.StatusOK, in)
}

func (s *ReportService) deleteItem(c *gin.Context) {
	s.record(c)
	if code := s.failure("items"); code != 0 {
		c.JSON(code, gin.H{"error": "forced failure"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		c.Status(http.StatusNotFound)
		return
	}
	delete(s.items, id)
	c.Status(http.StatusNoContent)
}

func (s *ReportService) report(c *gin.Context) {
	s.record(c)
	mode := c.Param("mode")
	format := c.Query("format")

	s.mu.Lock()
	hold := s.hold
	if hold != nil {
		s.holdCount++
	}
	s.mu.Unlock()
	if hold != nil {
		<-hold
	}

	if code := s.failure(mode); code != 0 {
		c.String(code, "report rendering failed")
		return
	}

	s.mu.Lock()
	body, ok := s.bodies[format]
	if !ok {
		body = []byte(fmt.Sprintf("%s report (%s) for %d items", format, mode, len(s.items)))
	}
	contentType := s.types[format]
	omit := s.omitType
	s.mu.Unlock()

	if omit {
		c.Writer.Header()["Content-Type"] = nil
		c.Status(http.StatusOK)
		_, _ = c.Writer.Write(body)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, body)
}
