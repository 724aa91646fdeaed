package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"feedsync/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fixture is a hand-written data set, usually loaded from YAML:
//
//	users:
//	  - username: alice
//	    name: Alice
//	posts:
//	  - author: alice
//	    body: hello
//	    comments:
//	      - author: bob
//	        text: nice
//	    likes: [bob]
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
	Posts []FixturePost `yaml:"posts"`
}

type FixtureUser struct {
	Username string `yaml:"username"`
	Name     string `yaml:"name"`
	Image    string `yaml:"image"`
	Bio      string `yaml:"bio"`
}

type FixturePost struct {
	Author   string           `yaml:"author"`
	Body     string           `yaml:"body"`
	File     string           `yaml:"file"`
	Comments []FixtureComment `yaml:"comments"`
	Likes    []string         `yaml:"likes"`
}

type FixtureComment struct {
	Author string `yaml:"author"`
	Text   string `yaml:"text"`
}

// LoadFixture decodes and validates a YAML fixture.
func LoadFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// LoadFixtureFile reads a fixture from path.
func LoadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadFixture(f)
}

// Validate checks that usernames are unique and every reference resolves.
func (fx *Fixture) Validate() error {
	known := make(map[string]struct{}, len(fx.Users))
	for _, u := range fx.Users {
		if u.Username == "" {
			return fmt.Errorf("fixture user without username")
		}
		if _, dup := known[u.Username]; dup {
			return fmt.Errorf("duplicate fixture user %q", u.Username)
		}
		known[u.Username] = struct{}{}
	}
	check := func(name, where string) error {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("%s references unknown user %q", where, name)
		}
		return nil
	}
	for i, p := range fx.Posts {
		where := fmt.Sprintf("post %d", i)
		if err := check(p.Author, where); err != nil {
			return err
		}
		if p.Body == "" && p.File == "" {
			return fmt.Errorf("%s has neither body nor file", where)
		}
		for _, c := range p.Comments {
			if err := check(c.Author, where+" comment"); err != nil {
				return err
			}
		}
		for _, l := range p.Likes {
			if err := check(l, where+" like"); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyFixture inserts fx. Posts are created oldest first in file order, so
// the last post in the file is the newest.
func (s *Seeder) ApplyFixture(ctx context.Context, fx *Fixture) (*Summary, error) {
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.passwordHash()
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byName := make(map[string]models.User, len(fx.Users))
		for _, fu := range fx.Users {
			u := models.User{
				Username: fu.Username,
				Name:     fu.Name,
				Email:    fu.Username + "@example.com",
				Password: hash,
				Bio:      fu.Bio,
				Image:    fu.Image,
			}
			if u.Name == "" {
				u.Name = fu.Username
			}
			if u.Image == "" {
				u.Image = fmt.Sprintf("https://i.pravatar.cc/150?u=%s", fu.Username)
			}
			if err := tx.Create(&u).Error; err != nil {
				return fmt.Errorf("create user %s: %w", fu.Username, err)
			}
			byName[fu.Username] = u
			summary.Users = append(summary.Users, u)
		}

		start := time.Now().Add(-time.Duration(len(fx.Posts)) * time.Hour)
		for i, fp := range fx.Posts {
			at := start.Add(time.Duration(i) * time.Hour)
			post := models.Post{
				Body:      fp.Body,
				File:      fp.File,
				UserID:    byName[fp.Author].ID,
				CreatedAt: at,
				UpdatedAt: at,
			}
			if err := tx.Omit(clause.Associations).Create(&post).Error; err != nil {
				return fmt.Errorf("create post %d: %w", i, err)
			}
			summary.Posts++

			for k, fc := range fp.Comments {
				cat := at.Add(time.Duration(k+1) * time.Minute)
				c := models.Comment{
					Text:      fc.Text,
					UserID:    byName[fc.Author].ID,
					PostID:    post.ID,
					CreatedAt: cat,
					UpdatedAt: cat,
				}
				if err := tx.Omit(clause.Associations).Create(&c).Error; err != nil {
					return fmt.Errorf("create comment on post %d: %w", i, err)
				}
				summary.Comments++
			}

			for _, name := range fp.Likes {
				like := models.Like{UserID: byName[name].ID, PostID: post.ID}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
					return fmt.Errorf("create like on post %d: %w", i, err)
				}
				summary.Likes++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
