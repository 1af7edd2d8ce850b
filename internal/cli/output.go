package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mcoot/movienight/internal/dependencies/clock"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case User:
		o.printUser(v)
	case Tokens:
		o.printTokens(v)
	case GroupRef:
		o.printGroupRef(v)
	case Group:
		o.printGroup(v)
	case RepairResult:
		fmt.Printf("Repaired entries: %d\n", v.Repaired)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// GroupRef response type (matches API)
type GroupRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User response type
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Groups       []GroupRef `json:"groups"`
	DateCreated  int64      `json:"date_created"`
	DateModified int64      `json:"date_modified"`
}

// Tokens response type
type Tokens struct {
	TokenType        string    `json:"token_type"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Movie response type
type Movie struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Year    int    `json:"year,omitempty"`
	AddedBy string `json:"added_by,omitempty"`
}

// Group response type
type Group struct {
	ID            string          `json:"id"`
	GroupName     string          `json:"group_name"`
	Members       []string        `json:"members"`
	MoviesWatched []Movie         `json:"movies_watched"`
	CurrentMovies []Movie         `json:"current_movies"`
	ReadyStatus   map[string]bool `json:"ready_status"`
	Turn          string          `json:"turn"`
	SystemState   string          `json:"system_state"`
	DateCreated   int64           `json:"date_created"`
	DateModified  int64           `json:"date_modified"`
}

// RepairResult response type
type RepairResult struct {
	Repaired int `json:"repaired"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printUser(u User) {
	fmt.Printf("User: %s (%s)\n", u.Username, u.ID)
	fmt.Printf("Created: %s\n", clock.FromUnix(u.DateCreated).Format(time.RFC3339))
	fmt.Printf("Groups (%d):\n", len(u.Groups))
	for _, g := range u.Groups {
		fmt.Printf("  - %s (%s)\n", g.Name, g.ID)
	}
}

func (o *Output) printTokens(t Tokens) {
	fmt.Printf("Access token expires: %s\n", t.AccessExpiresAt.Format(time.RFC3339))
	fmt.Printf("Refresh token expires: %s\n", t.RefreshExpiresAt.Format(time.RFC3339))
}

func (o *Output) printGroupRef(g GroupRef) {
	fmt.Printf("Group: %s (%s)\n", g.Name, g.ID)
}

func (o *Output) printGroup(g Group) {
	fmt.Printf("Group: %s (%s)\n", g.GroupName, g.ID)
	fmt.Printf("State: %s\n", g.SystemState)
	fmt.Printf("Turn: %s\n", g.Turn)
	if g.DateModified != 0 {
		fmt.Printf("Updated: %s\n", clock.FromUnix(g.DateModified).Format(time.RFC3339))
	}

	fmt.Printf("Members (%d):\n", len(g.Members))
	for _, m := range g.Members {
		readyStr := ""
		if g.ReadyStatus[m] {
			readyStr = " [ready]"
		}
		fmt.Printf("  - %s%s\n", m, readyStr)
	}

	if len(g.CurrentMovies) > 0 {
		fmt.Println("Current movies:")
		for _, m := range g.CurrentMovies {
			fmt.Printf("  - %s\n", formatMovie(m))
		}
	}

	if len(g.MoviesWatched) > 0 {
		titles := make([]string, len(g.MoviesWatched))
		for i, m := range g.MoviesWatched {
			titles[i] = m.Title
		}
		sort.Strings(titles)
		fmt.Printf("Watched: %s\n", strings.Join(titles, ", "))
	}
}

func formatMovie(m Movie) string {
	s := m.Title
	if m.Year > 0 {
		s = fmt.Sprintf("%s (%d)", s, m.Year)
	}
	if m.AddedBy != "" {
		s += " added by " + m.AddedBy
	}
	return s
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}
