// Package query はユーザー一覧に対するフィルタ式（expr-lang）を提供する。
//
// フィルタ式はユーザー1件ごとに評価され、真のユーザーだけが残る。例:
//
//	age >= 30 && isEmployed
//	any(companies, # == "Acme")
//	lower(lastName) startsWith "s"
package query

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/hitoshi/linkedout/internal/model"
)

const (
	maxExpressionLength = 512
	maxCachedPrograms   = 128
)

// Env はフィルタ式から参照できるユーザーの属性。
type Env struct {
	ID              string   `expr:"id"`
	FirstName       string   `expr:"firstName"`
	LastName        string   `expr:"lastName"`
	FullName        string   `expr:"fullName"`
	Age             int      `expr:"age"`
	About           string   `expr:"about"`
	Position        string   `expr:"position"`
	IsEmployed      bool     `expr:"isEmployed"`
	ExperienceCount int      `expr:"experienceCount"`
	Companies       []string `expr:"companies"`
	JobTitles       []string `expr:"jobTitles"`
}

// NewEnv はnow時点のユーザー属性からEnvを構築する。
func NewEnv(u model.User, now time.Time) Env {
	env := Env{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		FullName:        u.FullName(),
		Age:             u.Age(now),
		Position:        u.CurrentPosition(),
		ExperienceCount: len(u.WorkExperiences),
		Companies:       make([]string, 0, len(u.WorkExperiences)),
		JobTitles:       make([]string, 0, len(u.WorkExperiences)),
	}
	if u.About != nil {
		env.About = *u.About
	}
	for _, e := range u.WorkExperiences {
		env.Companies = append(env.Companies, e.CompanyName)
		env.JobTitles = append(env.JobTitles, e.JobTitle)
		if e.IsCurrent {
			env.IsEmployed = true
		}
	}
	return env
}

// Filter はコンパイル済みのフィルタ式。
type Filter struct {
	source  string
	program *vm.Program
}

// String は元の式を返す。
func (f *Filter) String() string {
	return f.source
}

// Match はユーザーが条件に一致するかを評価する。
func (f *Filter) Match(u model.User, now time.Time) (bool, error) {
	out, err := expr.Run(f.program, NewEnv(u, now))
	if err != nil {
		return false, model.NewInvalidFilterError(err.Error())
	}
	matched, ok := out.(bool)
	if !ok {
		return false, model.NewInvalidFilterError(fmt.Sprintf("式の結果が真偽値ではありません: %T", out))
	}
	return matched, nil
}

// Apply はusersのうち条件に一致するものを元の順序で返す。
func (f *Filter) Apply(users []model.User, now time.Time) ([]model.User, error) {
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		ok, err := f.Match(u, now)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// Compiler はフィルタ式をコンパイルし、結果をキャッシュする。
// 並行に使用してよい。
type Compiler struct {
	mu       sync.Mutex
	programs map[string]*Filter
}

// NewCompiler はCompilerの新しいインスタンスを生成する。
func NewCompiler() *Compiler {
	return &Compiler{programs: make(map[string]*Filter)}
}

// Compile はフィルタ式をコンパイルする。
// 構文エラーや真偽値以外を返す式は *model.APIError（INVALID_FILTER）を返す。
func (c *Compiler) Compile(source string) (*Filter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, model.NewInvalidFilterError("式が空です")
	}
	if len(source) > maxExpressionLength {
		return nil, model.NewInvalidFilterError(fmt.Sprintf("式が長すぎます（最大%d文字）", maxExpressionLength))
	}

	c.mu.Lock()
	if f, ok := c.programs[source]; ok {
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()

	program, err := expr.Compile(source, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, model.NewInvalidFilterError(err.Error())
	}
	f := &Filter{source: source, program: program}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.programs) >= maxCachedPrograms {
		clear(c.programs)
	}
	c.programs[source] = f
	return f, nil
}
