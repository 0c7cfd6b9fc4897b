package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"judgeflow/internal/common/cache"
	"judgeflow/internal/common/db"
	"judgeflow/internal/judging/model"
)

const (
	defaultProblemCacheTTL      = 10 * time.Minute
	defaultProblemCacheEmptyTTL = time.Minute
	problemCacheKeyPrefix       = "judging:problem:"
	boilerplateCacheKeyPrefix   = "judging:boilerplate:"
)

var (
	ErrProblemNotFound     = errors.New("problem not found")
	ErrBoilerplateNotFound = errors.New("boilerplate not found")
)

// ProblemRepository reads the problem catalog.
type ProblemRepository interface {
	GetBySlug(ctx context.Context, slug string) (*model.Problem, error)
	// GetBoilerplate matches languageID against languages.judge0_id.
	GetBoilerplate(ctx context.Context, problemID int64, languageID int) (*model.Boilerplate, error)
	ListBoilerplates(ctx context.Context, problemID int64) ([]model.Boilerplate, error)
}

// MySQLProblemRepository implements ProblemRepository with MySQL and a read-through cache.
type MySQLProblemRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewProblemRepository(database db.Database, cacheClient cache.Cache) *MySQLProblemRepository {
	return NewProblemRepositoryWithTTL(database, cacheClient, defaultProblemCacheTTL, defaultProblemCacheEmptyTTL)
}

func NewProblemRepositoryWithTTL(database db.Database, cacheClient cache.Cache, ttl, emptyTTL time.Duration) *MySQLProblemRepository {
	if ttl <= 0 {
		ttl = defaultProblemCacheTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultProblemCacheEmptyTTL
	}
	return &MySQLProblemRepository{db: database, cache: cacheClient, ttl: ttl, emptyTTL: emptyTTL}
}

func (r *MySQLProblemRepository) GetBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	if slug == "" {
		return nil, errors.New("slug is required")
	}
	problem, err := cache.GetWithCached[*model.Problem](
		ctx,
		r.cache,
		problemCacheKeyPrefix+slug,
		cache.JitterTTL(r.ttl),
		cache.JitterTTL(r.emptyTTL),
		func(p *model.Problem) bool { return p == nil },
		marshalJSON[*model.Problem],
		unmarshalJSON[*model.Problem],
		func(ctx context.Context) (*model.Problem, error) {
			p, err := r.getBySlugFromDB(ctx, slug)
			if errors.Is(err, ErrProblemNotFound) {
				return nil, nil
			}
			return p, err
		},
	)
	if err != nil {
		return nil, err
	}
	if problem == nil {
		return nil, ErrProblemNotFound
	}
	return problem, nil
}

func (r *MySQLProblemRepository) getBySlugFromDB(ctx context.Context, slug string) (*model.Problem, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, slug, title, description, input_format, output_format, constraints, difficulty
		FROM problems WHERE slug = ? LIMIT 1
	`, slug)
	p := &model.Problem{}
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.InputFormat, &p.OutputFormat, &p.Constraints, &p.Difficulty); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}
	return p, nil
}

const boilerplateQuery = `
	SELECT b.problem_id, l.judge0_id, l.name, b.code, b.full_code
	FROM boilerplates b
	JOIN languages l ON l.id = b.language_id
	WHERE b.problem_id = ?`

func (r *MySQLProblemRepository) GetBoilerplate(ctx context.Context, problemID int64, languageID int) (*model.Boilerplate, error) {
	key := boilerplateCacheKeyPrefix + strconv.FormatInt(problemID, 10) + ":" + strconv.Itoa(languageID)
	bp, err := cache.GetWithCached[*model.Boilerplate](
		ctx,
		r.cache,
		key,
		cache.JitterTTL(r.ttl),
		cache.JitterTTL(r.emptyTTL),
		func(b *model.Boilerplate) bool { return b == nil },
		marshalBoilerplate,
		unmarshalBoilerplate,
		func(ctx context.Context) (*model.Boilerplate, error) {
			row := r.db.QueryRow(ctx, boilerplateQuery+" AND l.judge0_id = ? LIMIT 1", problemID, languageID)
			b := &model.Boilerplate{}
			if err := row.Scan(&b.ProblemID, &b.LanguageID, &b.LanguageName, &b.EditableStub, &b.FullScaffold); err != nil {
				if db.IsNoRows(err) {
					return nil, nil
				}
				return nil, err
			}
			return b, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if bp == nil {
		return nil, ErrBoilerplateNotFound
	}
	return bp, nil
}

func (r *MySQLProblemRepository) ListBoilerplates(ctx context.Context, problemID int64) ([]model.Boilerplate, error) {
	rows, err := r.db.Query(ctx, boilerplateQuery+" ORDER BY l.judge0_id", problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Boilerplate
	for rows.Next() {
		var b model.Boilerplate
		if err := rows.Scan(&b.ProblemID, &b.LanguageID, &b.LanguageName, &b.EditableStub, &b.FullScaffold); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// cachedBoilerplate keeps the scaffold, which is hidden from API JSON.
type cachedBoilerplate struct {
	model.Boilerplate
	FullScaffold string `json:"fullCode"`
}

func marshalBoilerplate(b *model.Boilerplate) string {
	return marshalJSON(&cachedBoilerplate{Boilerplate: *b, FullScaffold: b.FullScaffold})
}

func unmarshalBoilerplate(data string) (*model.Boilerplate, error) {
	c, err := unmarshalJSON[*cachedBoilerplate](data)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New("empty boilerplate payload")
	}
	b := c.Boilerplate
	b.FullScaffold = c.FullScaffold
	return &b, nil
}

func marshalJSON[T any](v T) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalJSON[T any](data string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(data), &v)
	return v, err
}
