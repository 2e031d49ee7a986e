package query

import (
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/linkedout/internal/model"
)

var testNow = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func testUsers() []model.User {
	about := "Go developer"
	return []model.User{
		{
			ID: "u1", FirstName: "Ann", LastName: "Smith", BirthDate: "1990-04-01", About: &about,
			WorkExperiences: []model.Experience{
				{ID: "e1", JobTitle: "Engineer", CompanyName: "Acme", IsCurrent: true, UserID: "u1"},
				{ID: "e2", JobTitle: "Intern", CompanyName: "Globex", UserID: "u1"},
			},
		},
		{ID: "u2", FirstName: "Bob", LastName: "Stone", BirthDate: "2004-12-01", WorkExperiences: []model.Experience{}},
		{
			ID: "u3", FirstName: "Cid", LastName: "Kim", BirthDate: "1980-01-01",
			WorkExperiences: []model.Experience{{ID: "e3", JobTitle: "CTO", CompanyName: "Initech", UserID: "u3"}},
		},
	}
}

func ids(users []model.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func TestFilter_Apply(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"年齢", "age >= 30", []string{"u1", "u3"}},
		{"在職中", "isEmployed", []string{"u1"}},
		{"会社名", `any(companies, # == "Globex")`, []string{"u1"}},
		{"姓の前方一致", `lower(lastName) startsWith "s"`, []string{"u1", "u2"}},
		{"職歴なし", "experienceCount == 0", []string{"u2"}},
		{"現職表記", `position == "Engineer at Acme"`, []string{"u1"}},
		{"自己紹介", `about contains "Go"`, []string{"u1"}},
		{"一致なし", `firstName == "Zed"`, []string{}},
	}

	c := NewCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile(%q) がエラーを返した: %v", tt.expr, err)
			}
			got, err := f.Apply(testUsers(), testNow)
			if err != nil {
				t.Fatalf("Apply がエラーを返した: %v", err)
			}
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", gotIDs, tt.want)
			}
			for i := range tt.want {
				if gotIDs[i] != tt.want[i] {
					t.Errorf("ids = %v, want %v", gotIDs, tt.want)
					break
				}
			}
		})
	}
}

func TestCompiler_InvalidExpressions(t *testing.T) {
	c := NewCompiler()

	for _, src := range []string{
		"",
		"   ",
		"age >=",
		"unknownField == 1",
		`firstName + "x"`,
		string(make([]byte, maxExpressionLength+1)),
	} {
		_, err := c.Compile(src)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidFilter {
			t.Errorf("Compile(%q) err = %v, want INVALID_FILTER", src, err)
		}
	}
}

func TestCompiler_CachesPrograms(t *testing.T) {
	c := NewCompiler()

	f1, err := c.Compile("age > 1")
	if err != nil {
		t.Fatal(err)
	}
	f2, err := c.Compile("  age > 1  ")
	if err != nil {
		t.Fatal(err)
	}
	if f1 != f2 {
		t.Error("same expression should return the cached filter")
	}
	if f1.String() != "age > 1" {
		t.Errorf("String() = %q", f1.String())
	}
}

func TestNewEnv(t *testing.T) {
	env := NewEnv(testUsers()[0], testNow)

	if env.FullName != "Ann Smith" || env.Age != 34 || !env.IsEmployed {
		t.Errorf("env = %+v", env)
	}
	if len(env.Companies) != 2 || env.Companies[1] != "Globex" {
		t.Errorf("Companies = %v", env.Companies)
	}
}
