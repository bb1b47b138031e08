package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"agora/internal/models"
	"agora/internal/validation"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Scenario is a hand-written fixture: named users, categories, posts and the
// relations between them.
type Scenario struct {
	Users      []ScenarioUser   `yaml:"users"`
	Categories []string         `yaml:"categories"`
	Posts      []ScenarioPost   `yaml:"posts"`
	Follows    []ScenarioFollow `yaml:"follows"`
}

type ScenarioUser struct {
	Username  string `yaml:"username"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Bio       string `yaml:"bio"`
	Admin     bool   `yaml:"admin"`
}

type ScenarioPost struct {
	Author   string            `yaml:"author"`
	Title    string            `yaml:"title"`
	Content  string            `yaml:"content"`
	Category string            `yaml:"category"`
	Hidden   bool              `yaml:"hidden"`
	Inactive bool              `yaml:"inactive"`
	LikedBy  []string          `yaml:"liked_by"`
	Comments []ScenarioComment `yaml:"comments"`
}

type ScenarioComment struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

type ScenarioFollow struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// LoadScenario decodes and validates a YAML scenario.
func LoadScenario(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadScenarioFile reads a scenario from path.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path) // #nosec G304: operator-supplied fixture path
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadScenario(f)
}

// Validate checks that every reference in the scenario resolves and that
// passwords fit bcrypt.
func (sc *Scenario) Validate() error {
	users := make(map[string]bool, len(sc.Users))
	for _, u := range sc.Users {
		if strings.TrimSpace(u.Username) == "" {
			return fmt.Errorf("scenario user without username")
		}
		if users[u.Username] {
			return fmt.Errorf("duplicate scenario user %q", u.Username)
		}
		if len(u.Password) > validation.MaxPasswordBytes {
			return fmt.Errorf("user %q password exceeds %d bytes", u.Username, validation.MaxPasswordBytes)
		}
		users[u.Username] = true
	}
	categories := make(map[string]bool, len(sc.Categories))
	for _, c := range sc.Categories {
		categories[c] = true
	}

	known := func(kind, name string) error {
		if !users[name] {
			return fmt.Errorf("%s references unknown user %q", kind, name)
		}
		return nil
	}
	for i, p := range sc.Posts {
		if err := known("post "+p.Title, p.Author); err != nil {
			return err
		}
		if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Content) == "" {
			return fmt.Errorf("post %d needs a title and content", i)
		}
		if p.Category != "" && !categories[p.Category] {
			return fmt.Errorf("post %q references unknown category %q", p.Title, p.Category)
		}
		for _, name := range p.LikedBy {
			if err := known("like on "+p.Title, name); err != nil {
				return err
			}
		}
		for _, c := range p.Comments {
			if err := known("comment on "+p.Title, c.Author); err != nil {
				return err
			}
		}
	}
	for _, fl := range sc.Follows {
		if err := known("follow", fl.From); err != nil {
			return err
		}
		if err := known("follow", fl.To); err != nil {
			return err
		}
		if fl.From == fl.To {
			return fmt.Errorf("user %q cannot follow themselves", fl.From)
		}
	}
	return nil
}

// Apply writes the scenario in a single transaction.
func (sc *Scenario) Apply(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	sum := &Summary{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f := NewFactory(tx, opts)

		users := make(map[string]*models.User, len(sc.Users))
		for _, su := range sc.Users {
			password := f.passwordHash()
			if su.Password != "" {
				hashed, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
				if err != nil {
					return err
				}
				password = string(hashed)
			}
			u, err := f.CreateUser(func(u *models.User) {
				u.Username = su.Username
				u.Email = su.Email
				if u.Email == "" {
					u.Email = su.Username + "@example.com"
				}
				u.FirstName = su.FirstName
				u.LastName = su.LastName
				u.Password = password
				u.IsAdmin = su.Admin
			})
			if err != nil {
				return fmt.Errorf("create user %q: %w", su.Username, err)
			}
			if su.Bio != "" && !opts.DryRun {
				if err := tx.Model(&models.Profile{}).Where("user_id = ?", u.ID).Update("bio", su.Bio).Error; err != nil {
					return err
				}
			}
			users[su.Username] = u
		}
		sum.Users = len(users)

		categories := make(map[string]*models.Category, len(sc.Categories))
		for _, name := range sc.Categories {
			c, err := f.CreateCategory(name)
			if err != nil {
				return fmt.Errorf("create category %q: %w", name, err)
			}
			categories[name] = c
		}
		sum.Categories = len(categories)

		for _, sp := range sc.Posts {
			p, err := f.CreatePost(users[sp.Author], categories[sp.Category], func(p *models.Post) {
				p.Title = sp.Title
				p.Content = sp.Content
				p.IsShow = !sp.Hidden
				p.IsActive = !sp.Inactive
			})
			if err != nil {
				return fmt.Errorf("create post %q: %w", sp.Title, err)
			}
			sum.Posts++

			for _, name := range sp.LikedBy {
				if err := f.CreateLike(users[name], p); err != nil {
					return err
				}
				sum.Likes++
			}
			for _, cm := range sp.Comments {
				if _, err := f.CreateComment(users[cm.Author], p, func(c *models.Comment) {
					c.Content = cm.Content
				}); err != nil {
					return err
				}
				sum.Comments++
			}
		}

		for _, fl := range sc.Follows {
			if err := f.CreateFollow(users[fl.From], users[fl.To]); err != nil {
				return err
			}
			sum.Follows++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}
