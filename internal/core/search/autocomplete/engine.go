// Package autocomplete 處理搜尋框的輸入防抖、建議查詢與熱門搜尋。
//
// 每次輸入都會停止尚未觸發的計時器並遞增序號；
// 只有序號仍是最新的回應才會更新畫面狀態，過時的回應直接丟棄。
package autocomplete

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"meal-pipeline/internal/core/search"
	"meal-pipeline/internal/core/search/cache"
	"meal-pipeline/internal/infrastructure/config"
	"meal-pipeline/internal/pkg/common"

	"go.uber.org/zap"
)

// State 搜尋框狀態
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateLoading    State = "loading"
	StateResolved   State = "resolved"
	StateCommitted  State = "committed"
)

// Timer 可取消的延遲工作
type Timer interface {
	Stop() bool
}

// AfterFunc 排程函式，預設為 time.AfterFunc
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Settings 引擎參數
type Settings struct {
	Debounce       time.Duration
	MinQueryLength int
	SuggestLimit   int
	SearchLimit    int
	TrendingLimit  int
	MaxSuggestions int
	MaxBrands      int
	MaxProducts    int

	// ShowProductResults 選取建議後是否執行完整商品搜尋
	ShowProductResults bool
	ProductType        search.ProductType
}

// SettingsFromConfig 由設定檔建立引擎參數
func SettingsFromConfig(cfg *config.AutocompleteConfig) Settings {
	return Settings{
		Debounce:       cfg.Debounce,
		MinQueryLength: cfg.MinQueryLength,
		SuggestLimit:   cfg.SuggestLimit,
		SearchLimit:    cfg.SearchLimit,
		TrendingLimit:  cfg.TrendingLimit,
		MaxSuggestions: cfg.MaxSuggestions,
		MaxBrands:      cfg.MaxBrands,
		MaxProducts:    cfg.MaxProducts,
		ProductType:    search.TypeFood,
	}
}

// Snapshot 目前可顯示的狀態
type Snapshot struct {
	Query        string             `json:"query"`
	State        State              `json:"state"`
	ProductType  search.ProductType `json:"product_type"`
	Loading      bool               `json:"loading"`
	ShowDropdown bool               `json:"show_dropdown"`
	Trending     []string           `json:"trending"`
	Suggestions  []string           `json:"suggestions"`
	Brands       []string           `json:"brands"`
	Products     []search.Product   `json:"products"`
	Results      []search.Product   `json:"results"`
	FromCache    bool               `json:"from_cache"`
}

// Engine 單一搜尋框的自動完成
type Engine struct {
	svc         search.ProductSearchService
	searchCache *cache.ResultCache
	suggestions *cache.ResultCache
	settings    Settings
	afterFunc   AfterFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	seq            uint64
	timer          Timer
	closed         bool
	trendingLoaded bool
	snap           Snapshot
}

// Option 引擎選項
type Option func(*Engine)

// WithAfterFunc 替換排程器
func WithAfterFunc(fn AfterFunc) Option {
	return func(e *Engine) {
		e.afterFunc = fn
	}
}

// WithCaches 設定搜尋結果與建議快取
func WithCaches(searchCache, suggestions *cache.ResultCache) Option {
	return func(e *Engine) {
		e.searchCache = searchCache
		e.suggestions = suggestions
	}
}

// New 創建引擎，不會發出任何請求
func New(svc search.ProductSearchService, settings Settings, opts ...Option) *Engine {
	if settings.MinQueryLength <= 0 {
		settings.MinQueryLength = 2
	}
	if settings.ProductType == "" {
		settings.ProductType = search.TypeFood
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		svc:       svc,
		settings:  settings,
		afterFunc: realAfterFunc,
		ctx:       ctx,
		cancel:    cancel,
		snap: Snapshot{
			State:       StateIdle,
			ProductType: settings.ProductType,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot 取得目前狀態的副本
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Trending 取得熱門搜尋，每個引擎只載入一次
func (e *Engine) Trending() []string {
	e.mu.Lock()
	if e.trendingLoaded {
		out := append([]string(nil), e.snap.Trending...)
		e.mu.Unlock()
		return out
	}
	e.mu.Unlock()

	terms := e.loadTrending(e.ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.trendingLoaded {
		e.trendingLoaded = true
		e.snap.Trending = terms
	}
	return append([]string(nil), e.snap.Trending...)
}

// SetQuery 更新輸入內容。
// 長度不足時回到 idle 並顯示熱門搜尋；否則重新開始防抖計時，
// 先前尚未觸發的請求會被取消。
func (e *Engine) SetQuery(query string) Snapshot {
	e.mu.Lock()
	if e.closed {
		defer e.mu.Unlock()
		return e.snapshotLocked()
	}

	e.stopTimerLocked()
	e.seq++
	e.snap.Query = query
	e.snap.Results = nil
	e.snap.FromCache = false

	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < e.settings.MinQueryLength {
		e.snap.State = StateIdle
		e.snap.Loading = false
		e.snap.ShowDropdown = true
		e.clearSuggestionsLocked()
		needTrending := !e.trendingLoaded
		e.mu.Unlock()

		if needTrending {
			e.Trending()
		}
		return e.Snapshot()
	}

	seq := e.seq
	e.snap.State = StateDebouncing
	e.snap.ShowDropdown = true
	e.timer = e.afterFunc(e.settings.Debounce, func() {
		e.fire(seq, trimmed)
	})
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// fire 防抖計時結束後查詢建議
func (e *Engine) fire(seq uint64, query string) {
	e.mu.Lock()
	if e.closed || seq != e.seq {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.snap.State = StateLoading
	e.snap.Loading = true
	e.mu.Unlock()

	resp := e.suggest(e.ctx, query)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || seq != e.seq {
		common.LogDebug("丟棄過時的建議回應",
			zap.String("query", query),
			zap.Uint64("seq", seq),
			zap.Uint64("current", e.seq),
		)
		return
	}

	e.snap.State = StateResolved
	e.snap.Loading = false
	e.snap.Suggestions = truncateStrings(resp.Suggestions, e.settings.MaxSuggestions)
	e.snap.Brands = truncateStrings(resp.Brands, e.settings.MaxBrands)
	e.snap.Products = truncateProducts(resp.Products, e.settings.MaxProducts)
	e.snap.FromCache = resp.FromCache
}

// SelectSuggestion 選取建議文字
func (e *Engine) SelectSuggestion(text string) Snapshot {
	return e.commit(text, e.settings.ShowProductResults)
}

// SelectTrending 選取熱門搜尋
func (e *Engine) SelectTrending(term string) Snapshot {
	return e.commit(term, e.settings.ShowProductResults)
}

// Submit 以目前輸入執行完整搜尋
func (e *Engine) Submit() Snapshot {
	e.mu.Lock()
	query := e.snap.Query
	e.mu.Unlock()
	return e.commit(query, true)
}

// SelectProduct 選取建議或搜尋結果中的商品
func (e *Engine) SelectProduct(productID string) (search.Product, bool) {
	e.mu.Lock()
	product, ok := findProduct(productID, e.snap.Products, e.snap.Results)
	e.mu.Unlock()
	if !ok {
		return search.Product{}, false
	}
	e.commit(product.Name, false)
	return product, true
}

// Clear 清空輸入並回到 idle
func (e *Engine) Clear() Snapshot {
	e.mu.Lock()
	e.stopTimerLocked()
	e.seq++
	e.snap.Query = ""
	e.snap.State = StateIdle
	e.snap.Loading = false
	e.snap.ShowDropdown = false
	e.snap.Results = nil
	e.snap.FromCache = false
	e.clearSuggestionsLocked()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Close 停止計時器並取消進行中的請求
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.stopTimerLocked()
	e.seq++
	e.cancel()
}

// commit 設定輸入為選取的文字並關閉下拉選單；需要時執行完整搜尋
func (e *Engine) commit(text string, runSearch bool) Snapshot {
	e.mu.Lock()
	if e.closed {
		defer e.mu.Unlock()
		return e.snapshotLocked()
	}
	e.stopTimerLocked()
	e.seq++
	seq := e.seq
	e.snap.Query = text
	e.snap.State = StateCommitted
	e.snap.ShowDropdown = false
	e.snap.Loading = false
	e.snap.Results = nil
	e.clearSuggestionsLocked()

	query := strings.TrimSpace(text)
	if !runSearch || query == "" {
		defer e.mu.Unlock()
		return e.snapshotLocked()
	}
	e.snap.Loading = true
	e.mu.Unlock()

	results, brands, fromCache := e.search(e.ctx, query)

	e.mu.Lock()
	defer e.mu.Unlock()
	if seq == e.seq {
		e.snap.Loading = false
		e.snap.Results = results
		e.snap.Brands = truncateStrings(brands, e.settings.MaxBrands)
		e.snap.FromCache = fromCache
	}
	return e.snapshotLocked()
}

func (e *Engine) suggest(ctx context.Context, query string) *search.SuggestResponse {
	key := fmt.Sprintf("suggest:%s:%s", e.settings.ProductType, query)
	var cached search.SuggestResponse
	if e.suggestions.Load(ctx, key, &cached) {
		cached.FromCache = true
		return &cached
	}

	resp, err := e.svc.Suggest(ctx, query, e.settings.ProductType, e.settings.SuggestLimit)
	if err != nil || resp == nil {
		common.LogWarn("取得搜尋建議失敗",
			zap.String("query", query),
			zap.Error(err),
		)
		return &search.SuggestResponse{}
	}
	e.suggestions.Set(ctx, key, resp)
	return resp
}

// search 完整商品搜尋，一併回傳結果中的品牌；失敗時回傳空結果
func (e *Engine) search(ctx context.Context, query string) ([]search.Product, []string, bool) {
	key := fmt.Sprintf("search:%s:%d:%s", e.settings.ProductType, e.settings.SearchLimit, query)
	var cached search.SearchResponse
	if e.searchCache.Load(ctx, key, &cached) {
		return nonNilProducts(cached.Group(e.settings.ProductType)), search.ExtractBrands(&cached), true
	}

	resp, err := e.svc.Search(ctx, query, search.SearchOptions{
		Type:  e.settings.ProductType,
		Limit: e.settings.SearchLimit,
	})
	if err != nil || resp == nil {
		common.LogWarn("商品搜尋失敗，回傳空結果",
			zap.String("query", query),
			zap.Error(err),
		)
		return []search.Product{}, nil, false
	}
	e.searchCache.Set(ctx, key, resp)
	return nonNilProducts(resp.Group(e.settings.ProductType)), search.ExtractBrands(resp), resp.FromCache
}

// loadTrending 讀取熱門搜尋，失敗或服務回報不成功時使用內建清單
func (e *Engine) loadTrending(ctx context.Context) []string {
	key := "trending:" + string(e.settings.ProductType)
	var cached []string
	if e.searchCache.Load(ctx, key, &cached) && len(cached) > 0 {
		return cached
	}

	resp, err := e.svc.Trending(ctx, e.settings.ProductType, e.settings.TrendingLimit)
	if err != nil || resp == nil || !resp.Success || len(resp.Trending) == 0 {
		common.LogWarn("熱門搜尋無法取得，使用內建清單",
			zap.String("type", string(e.settings.ProductType)),
			zap.Error(err),
		)
		return search.FallbackTrendingTerms(e.settings.TrendingLimit)
	}

	terms := truncateStrings(resp.Trending, e.settings.TrendingLimit)
	e.searchCache.Set(ctx, key, terms)
	return terms
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) clearSuggestionsLocked() {
	e.snap.Suggestions = nil
	e.snap.Brands = nil
	e.snap.Products = nil
}

func (e *Engine) snapshotLocked() Snapshot {
	s := e.snap
	s.Trending = append([]string{}, e.snap.Trending...)
	s.Suggestions = append([]string{}, e.snap.Suggestions...)
	s.Brands = append([]string{}, e.snap.Brands...)
	s.Products = append([]search.Product{}, e.snap.Products...)
	s.Results = append([]search.Product{}, e.snap.Results...)
	return s
}

func findProduct(id string, lists ...[]search.Product) (search.Product, bool) {
	for _, list := range lists {
		for _, p := range list {
			if p.ID == id {
				return p, true
			}
		}
	}
	return search.Product{}, false
}

func truncateStrings(in []string, max int) []string {
	if max > 0 && len(in) > max {
		in = in[:max]
	}
	return append([]string{}, in...)
}

func truncateProducts(in []search.Product, max int) []search.Product {
	if max > 0 && len(in) > max {
		in = in[:max]
	}
	return append([]search.Product{}, in...)
}

func nonNilProducts(in []search.Product) []search.Product {
	if in == nil {
		return []search.Product{}
	}
	return in
}
