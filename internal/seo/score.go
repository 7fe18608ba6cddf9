// Package seo scores page metadata, aggregates a site-wide health score and keeps the set of
// stored page records in line with the routes the public site serves.
package seo

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

const (
	maxScore = 100

	titleMinLength       = 30
	titleMaxLength       = 60
	descriptionMinLength = 120
	descriptionMaxLength = 160
)

// Diagnostics reported by Score.
const (
	IssueMissingTitle              = "Missing title"
	IssueTitleTooLong              = "Title too long"
	IssueTitleTooShort             = "Title too short"
	IssueMissingDescription        = "Missing description"
	IssueDescriptionTooLong        = "Description too long"
	IssueDescriptionTooShort       = "Description too short"
	IssueNoFocusKeyword            = "No focus keyword set"
	IssueTitleMissingKeyword       = "Title does not contain focus keyword"
	IssueDescriptionMissingKeyword = "Description does not contain focus keyword"
	IssueMissingSocialImage        = "Missing social preview image"
)

// Ratings returned by Rate.
const (
	RatingGood             = "good"
	RatingNeedsImprovement = "needs_improvement"
	RatingPoor             = "poor"
)

// Result is the outcome of scoring one page.
type Result struct {
	Score  int
	Issues []string
}

// facts are the normalised inputs every criterion reads.
type facts struct {
	titleLen       int
	descriptionLen int
	title          string
	description    string
	keyword        string
	ogImage        bool
	noIndex        bool
	canonical      bool
	cornerstone    bool
}

type outcome struct {
	when   func(facts) bool
	points int
	issue  string
}

// criterion contributes the first outcome whose predicate matches. Outcomes of one criterion are
// mutually exclusive, so a page can never collect two title-length awards.
type criterion struct {
	name     string
	applies  func(facts) bool
	outcomes []outcome
}

func always(facts) bool { return true }

var criteria = []criterion{
	{
		name: "title_length",
		outcomes: []outcome{
			{when: func(f facts) bool { return f.titleLen == 0 }, issue: IssueMissingTitle},
			{when: func(f facts) bool { return f.titleLen > titleMaxLength }, points: 10, issue: IssueTitleTooLong},
			{when: func(f facts) bool { return f.titleLen < titleMinLength }, points: 10, issue: IssueTitleTooShort},
			{when: always, points: 20},
		},
	},
	{
		name: "description_length",
		outcomes: []outcome{
			{when: func(f facts) bool { return f.descriptionLen == 0 }, issue: IssueMissingDescription},
			{when: func(f facts) bool { return f.descriptionLen > descriptionMaxLength }, points: 10, issue: IssueDescriptionTooLong},
			{when: func(f facts) bool { return f.descriptionLen < descriptionMinLength }, points: 5, issue: IssueDescriptionTooShort},
			{when: always, points: 20},
		},
	},
	{
		name: "focus_keyword",
		outcomes: []outcome{
			{when: func(f facts) bool { return f.keyword == "" }, issue: IssueNoFocusKeyword},
			{when: always, points: 5},
		},
	},
	{
		name:    "keyword_in_title",
		applies: func(f facts) bool { return f.keyword != "" },
		outcomes: []outcome{
			{when: func(f facts) bool { return strings.Contains(f.title, f.keyword) }, points: 10},
			{when: always, issue: IssueTitleMissingKeyword},
		},
	},
	{
		name:    "keyword_in_description",
		applies: func(f facts) bool { return f.keyword != "" },
		outcomes: []outcome{
			{when: func(f facts) bool { return strings.Contains(f.description, f.keyword) }, points: 5},
			{when: always, issue: IssueDescriptionMissingKeyword},
		},
	},
	{
		name: "social_image",
		outcomes: []outcome{
			{when: func(f facts) bool { return f.ogImage }, points: 20},
			{when: always, issue: IssueMissingSocialImage},
		},
	},
	{
		name: "indexable",
		outcomes: []outcome{
			{when: func(f facts) bool { return !f.noIndex }, points: 10},
		},
	},
	{
		name: "canonical",
		outcomes: []outcome{
			{when: func(f facts) bool { return f.canonical }, points: 5},
		},
	},
	{
		name: "cornerstone",
		outcomes: []outcome{
			{when: func(f facts) bool { return f.cornerstone }, points: 5},
		},
	},
}

// Score evaluates page against the weighted criteria and returns a score in [0,100] with the
// diagnostics in criteria order. Missing fields are treated as unmet criteria, never as errors.
func Score(page domain.PageSEO) Result {
	f := collectFacts(page)
	result := Result{Issues: []string{}}
	for _, c := range criteria {
		if c.applies != nil && !c.applies(f) {
			continue
		}
		for _, o := range c.outcomes {
			if !o.when(f) {
				continue
			}
			result.Score += o.points
			if o.issue != "" {
				result.Issues = append(result.Issues, o.issue)
			}
			break
		}
	}
	result.Score = min(max(result.Score, 0), maxScore)
	return result
}

// AggregateHealth returns the rounded mean score of pages, or 0 when there are none.
func AggregateHealth(pages []domain.PageSEO) int {
	if len(pages) == 0 {
		return 0
	}
	total := 0
	for _, page := range pages {
		total += Score(page).Score
	}
	return int(math.Round(float64(total) / float64(len(pages))))
}

// Rate buckets a score for display.
func Rate(score int) string {
	switch {
	case score >= 80:
		return RatingGood
	case score >= 50:
		return RatingNeedsImprovement
	default:
		return RatingPoor
	}
}

func collectFacts(page domain.PageSEO) facts {
	fold := cases.Fold()
	title := strings.TrimSpace(page.Title)
	description := strings.TrimSpace(page.Description)
	return facts{
		titleLen:       utf8.RuneCountInString(title),
		descriptionLen: utf8.RuneCountInString(description),
		title:          fold.String(title),
		description:    fold.String(description),
		keyword:        fold.String(strings.TrimSpace(page.FocusKeyword)),
		ogImage:        strings.TrimSpace(page.OGImage) != "",
		noIndex:        page.NoIndex,
		canonical:      strings.TrimSpace(page.CanonicalURL) != "",
		cornerstone:    page.IsCornerstone,
	}
}
