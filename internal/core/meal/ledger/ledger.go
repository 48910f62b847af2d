// Package ledger 管理正在編輯的餐點食材清單。
//
// 每次變更都以新的切片取代舊的清單，已交出的 Entries 快照不會被修改。
// Ledger 本身不加鎖，由擁有它的工作階段負責序列化存取。
package ledger

import (
	"fmt"
	"strings"

	"meal-pipeline/internal/core/search"
	"meal-pipeline/internal/pkg/common"
)

// Entry 食材項目
type Entry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Unit   string `json:"unit"`

	// 每單位營養值，只有從商品加入的項目才有
	CaloriesPerUnit *float64 `json:"calories_per_unit,omitempty"`
	ProteinPerUnit  *float64 `json:"protein_per_unit,omitempty"`
	CarbsPerUnit    *float64 `json:"carbs_per_unit,omitempty"`
	FatPerUnit      *float64 `json:"fat_per_unit,omitempty"`

	Brand     string `json:"brand,omitempty"`
	ProductID string `json:"product_id,omitempty"`
}

// Eligible 名稱非空白的項目才會計入總計、儲存與購物清單
func (e Entry) Eligible() bool {
	return strings.TrimSpace(e.Name) != ""
}

// HasNutrition 是否帶有任何營養值
func (e Entry) HasNutrition() bool {
	return e.CaloriesPerUnit != nil || e.ProteinPerUnit != nil || e.CarbsPerUnit != nil || e.FatPerUnit != nil
}

// Field 可被 Update 修改的欄位
type Field string

const (
	FieldName   Field = "name"
	FieldAmount Field = "amount"
	FieldUnit   Field = "unit"
	FieldBrand  Field = "brand"
)

// ParseField 解析欄位名稱
func ParseField(s string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldName, FieldAmount, FieldUnit, FieldBrand:
		return f, nil
	}
	return "", common.NewValidationError(fmt.Sprintf("unknown ingredient field %q", s))
}

// Ledger 有序的食材清單
type Ledger struct {
	entries []Entry
	newID   func() string
}

// Option Ledger 選項
type Option func(*Ledger)

// WithIDGenerator 替換 id 產生方式
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) {
		l.newID = fn
	}
}

// New 創建空的清單
func New(opts ...Option) *Ledger {
	l := &Ledger{
		entries: []Entry{},
		newID:   common.GenerateUUID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Entries 回傳目前清單的副本
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len 項目數量
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Get 依 id 取得項目
func (l *Ledger) Get(id string) (Entry, bool) {
	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Add 加入項目，沒有 id 時自動產生
func (l *Ledger) Add(e Entry) Entry {
	if e.ID == "" {
		e.ID = l.newID()
	}
	next := make([]Entry, len(l.entries), len(l.entries)+1)
	copy(next, l.entries)
	l.entries = append(next, e)
	return e
}

// AddManual 加入手動輸入的食材（沒有營養值）
func (l *Ledger) AddManual(name, amount, unit string) Entry {
	return l.Add(Entry{
		Name:   name,
		Amount: amount,
		Unit:   unit,
	})
}

// AddFromProduct 從搜尋到的商品加入食材；amount 預設 "1"，
// unit 預設為商品份量，再其次為 "serving"
func (l *Ledger) AddFromProduct(p search.Product, amount, unit string) Entry {
	if strings.TrimSpace(amount) == "" {
		amount = "1"
	}
	if strings.TrimSpace(unit) == "" {
		unit = p.Serving()
	}
	if strings.TrimSpace(unit) == "" {
		unit = "serving"
	}

	e := Entry{
		Name:      p.Name,
		Amount:    amount,
		Unit:      unit,
		Brand:     p.Brand,
		ProductID: p.ID,
	}

	// 商品只要有任一營養值，四個欄位都要有值（缺的補 0）
	if n := p.PerUnit(); n.HasAny() {
		e.CaloriesPerUnit = valueOrZero(n.Calories)
		e.ProteinPerUnit = valueOrZero(n.Protein)
		e.CarbsPerUnit = valueOrZero(n.Carbs)
		e.FatPerUnit = valueOrZero(n.Fat)
	}
	return l.Add(e)
}

// Update 修改指定項目的欄位；id 不存在時不做任何事並回傳 false
func (l *Ledger) Update(id string, field Field, value string) bool {
	idx := l.indexOf(id)
	if idx < 0 {
		return false
	}

	e := l.entries[idx]
	switch field {
	case FieldName:
		e.Name = value
	case FieldAmount:
		e.Amount = value
	case FieldUnit:
		e.Unit = value
	case FieldBrand:
		e.Brand = value
	default:
		return false
	}

	next := make([]Entry, len(l.entries))
	copy(next, l.entries)
	next[idx] = e
	l.entries = next
	return true
}

// Remove 移除指定項目；id 不存在時回傳 false
func (l *Ledger) Remove(id string) bool {
	idx := l.indexOf(id)
	if idx < 0 {
		return false
	}
	next := make([]Entry, 0, len(l.entries)-1)
	next = append(next, l.entries[:idx]...)
	next = append(next, l.entries[idx+1:]...)
	l.entries = next
	return true
}

// ReplaceAll 以新的清單取代，缺少 id 的項目會補上
func (l *Ledger) ReplaceAll(entries []Entry) {
	next := make([]Entry, len(entries))
	copy(next, entries)
	for i := range next {
		if next[i].ID == "" {
			next[i].ID = l.newID()
		}
	}
	l.entries = next
}

// Reset 清空清單
func (l *Ledger) Reset() {
	l.entries = []Entry{}
}

func (l *Ledger) indexOf(id string) int {
	for i, e := range l.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func valueOrZero(v *float64) *float64 {
	out := 0.0
	if v != nil {
		out = *v
	}
	return &out
}
