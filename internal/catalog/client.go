package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pokedex/internal/metrics"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// allNamesLimit is large enough to return every pokemon in one listing.
const allNamesLimit = 100000

// Config configures a catalog Client.
type Config struct {
	BaseURL string
	// CacheTTL is how long a response stays cached. Zero keeps entries until the cache is dropped.
	CacheTTL time.Duration
	// RateLimit is the number of outbound requests allowed per second.
	RateLimit float64
	// Concurrency bounds the detail requests issued by one ListPokemon call.
	Concurrency int
	HTTPClient  *http.Client
}

// Client is a read-only, cached client of the public pokemon catalog.
type Client struct {
	baseURL     string
	http        *http.Client
	cache       Cache
	ttl         time.Duration
	limiter     *rate.Limiter
	concurrency int
	log         *zap.Logger
}

// NewClient creates a Client. cache may be nil, in which case a MemoryCache is used.
func NewClient(cfg Config, cache Cache, log *zap.Logger) *Client {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		http:        httpClient,
		cache:       cache,
		ttl:         cfg.CacheTTL,
		limiter:     rate.NewLimiter(limit, burst),
		concurrency: concurrency,
		log:         log,
	}
}

// fetch returns the raw JSON body for path, reading through the cache.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	cached, ok, err := c.cache.Get(ctx, path)
	if err != nil {
		c.log.Warn("catalog cache read failed", zap.String("path", path), zap.Error(err))
	}
	metrics.RecordCacheLookup(ok)
	if ok {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrUpstream, path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUpstream, path, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: GET %s returned invalid JSON", ErrUpstream, path)
	}

	if err := c.cache.Set(ctx, path, body, c.ttl); err != nil {
		c.log.Warn("catalog cache write failed", zap.String("path", path), zap.Error(err))
	}
	return body, nil
}

// ListPokemon returns one page of pokemon with their summaries. Details are fetched concurrently.
func (c *Client) ListPokemon(ctx context.Context, limit, offset int) (*Page, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 || limit > MaxLimit || offset < 0 {
		return nil, fmt.Errorf("%w: limit must be 1..%d and offset non-negative", ErrInvalidArgument, MaxLimit)
	}

	body, err := c.fetch(ctx, fmt.Sprintf("/pokemon?limit=%d&offset=%d", limit, offset))
	if err != nil {
		return nil, err
	}
	listing := gjson.ParseBytes(body)
	names := listing.Get("results.#.name").Array()

	results := make([]Summary, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			detail, err := c.GetPokemon(gctx, name.String())
			if err != nil {
				return err
			}
			results[i] = detail.Summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Page{
		Count:   int(listing.Get("count").Int()),
		Limit:   limit,
		Offset:  offset,
		Results: results,
	}, nil
}

// GetPokemon returns the detail of a pokemon by name or numeric id. Names are case-insensitive.
func (c *Client) GetPokemon(ctx context.Context, nameOrID string) (*Detail, error) {
	key := strings.ToLower(strings.TrimSpace(nameOrID))
	if key == "" {
		return nil, fmt.Errorf("%w: pokemon name is required", ErrInvalidArgument)
	}

	body, err := c.fetch(ctx, "/pokemon/"+url.PathEscape(key))
	if err != nil {
		return nil, err
	}
	return parseDetail(gjson.ParseBytes(body)), nil
}

func parseDetail(r gjson.Result) *Detail {
	d := &Detail{
		Summary: Summary{
			ID:    int(r.Get("id").Int()),
			Name:  r.Get("name").String(),
			Image: r.Get("sprites.front_default").String(),
			Types: stringSlice(r.Get("types.#.type.name")),
		},
		Height:    int(r.Get("height").Int()),
		Weight:    int(r.Get("weight").Int()),
		Abilities: stringSlice(r.Get("abilities.#.ability.name")),
		Stats:     []Stat{},
	}
	r.Get("stats").ForEach(func(_, s gjson.Result) bool {
		d.Stats = append(d.Stats, Stat{
			Name: s.Get("stat.name").String(),
			Base: int(s.Get("base_stat").Int()),
		})
		return true
	})
	return d
}

// stringSlice flattens a gjson array of strings; the result is never nil.
func stringSlice(r gjson.Result) []string {
	arr := r.Array()
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.String())
	}
	return out
}

// AllNames returns the names of every pokemon in the catalog.
func (c *Client) AllNames(ctx context.Context) ([]string, error) {
	body, err := c.fetch(ctx, "/pokemon?limit="+strconv.Itoa(allNamesLimit)+"&offset=0")
	if err != nil {
		return nil, err
	}
	return stringSlice(gjson.GetBytes(body, "results.#.name")), nil
}

// Search returns the names containing q, case-insensitively, in catalog order.
// Queries shorter than MinSearchLength match nothing.
func (c *Client) Search(ctx context.Context, q string) ([]string, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if len([]rune(q)) < MinSearchLength {
		return []string{}, nil
	}

	names, err := c.AllNames(ctx)
	if err != nil {
		return nil, err
	}
	matches := []string{}
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), q) {
			matches = append(matches, name)
		}
	}
	return matches, nil
}

// TypeRelations returns the damage relations of a type.
func (c *Client) TypeRelations(ctx context.Context, typeName string) (*TypeRelations, error) {
	key := strings.ToLower(strings.TrimSpace(typeName))
	if key == "" {
		return nil, fmt.Errorf("%w: type name is required", ErrInvalidArgument)
	}

	body, err := c.fetch(ctx, "/type/"+url.PathEscape(key))
	if err != nil {
		return nil, err
	}
	rel := gjson.GetBytes(body, "damage_relations")
	return &TypeRelations{
		Name:             gjson.GetBytes(body, "name").String(),
		DoubleDamageTo:   stringSlice(rel.Get("double_damage_to.#.name")),
		DoubleDamageFrom: stringSlice(rel.Get("double_damage_from.#.name")),
		HalfDamageTo:     stringSlice(rel.Get("half_damage_to.#.name")),
		HalfDamageFrom:   stringSlice(rel.Get("half_damage_from.#.name")),
		NoDamageTo:       stringSlice(rel.Get("no_damage_to.#.name")),
		NoDamageFrom:     stringSlice(rel.Get("no_damage_from.#.name")),
	}, nil
}

// Compare fetches two pokemon, lines up their stats and rates each one's types against the other.
func (c *Client) Compare(ctx context.Context, first, second string) (*Comparison, error) {
	var a, b *Detail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a, err = c.GetPokemon(gctx, first)
		return err
	})
	g.Go(func() (err error) {
		b, err = c.GetPokemon(gctx, second)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	relations, err := c.relationsFor(ctx, append(append([]string{}, a.Types...), b.Types...))
	if err != nil {
		return nil, err
	}

	return &Comparison{
		First:          a,
		Second:         b,
		Stats:          compareStats(a, b),
		FirstMatchups:  matchups(a.Types, b.Types, relations),
		SecondMatchups: matchups(b.Types, a.Types, relations),
	}, nil
}

func (c *Client) relationsFor(ctx context.Context, types []string) (map[string]*TypeRelations, error) {
	var unique []string
	seen := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.ToLower(t)
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}

	found := make([]*TypeRelations, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, t := range unique {
		i, t := i, t
		g.Go(func() error {
			rel, err := c.TypeRelations(gctx, t)
			if err != nil {
				return err
			}
			found[i] = rel
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*TypeRelations, len(unique))
	for i, t := range unique {
		out[t] = found[i]
	}
	return out, nil
}

// compareStats lines up the stats of a and b in a's order, then any stats only b has.
func compareStats(a, b *Detail) []StatComparison {
	out := make([]StatComparison, 0, len(a.Stats))
	seen := make(map[string]bool, len(a.Stats))
	for _, s := range a.Stats {
		other, _ := b.StatValue(s.Name)
		out = append(out, StatComparison{Name: s.Name, First: s.Base, Second: other, Diff: s.Base - other})
		seen[s.Name] = true
	}
	for _, s := range b.Stats {
		if !seen[s.Name] {
			out = append(out, StatComparison{Name: s.Name, Second: s.Base, Diff: -s.Base})
		}
	}
	return out
}

func matchups(attacker, defender []string, relations map[string]*TypeRelations) []TypeMatchup {
	out := make([]TypeMatchup, 0, len(attacker))
	for _, t := range attacker {
		out = append(out, TypeMatchup{Type: t, Result: Matchup(relations[strings.ToLower(t)], defender)})
	}
	return out
}

// Matchup rates an attacking type against all of a defender's types.
// A type that cannot hit, or cannot be hit by, any defender type decides the result outright.
func Matchup(attacker *TypeRelations, defender []string) Effectiveness {
	if attacker == nil || len(defender) == 0 {
		return Neutral
	}
	advantage, disadvantage := false, false
	for _, d := range defender {
		d = strings.ToLower(d)
		if contains(attacker.DoubleDamageTo, d) {
			advantage = true
		}
		if contains(attacker.DoubleDamageFrom, d) {
			disadvantage = true
		}
		if contains(attacker.NoDamageTo, d) {
			return NoEffect
		}
		if contains(attacker.NoDamageFrom, d) {
			return Immune
		}
	}
	switch {
	case advantage && disadvantage:
		return Mixed
	case advantage:
		return Advantage
	case disadvantage:
		return Disadvantage
	default:
		return Neutral
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
