package keyword

import (
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/mitsukeru/internal/models"
)

// BuildQuery translates a segmented query plus filters into a Bleve query.
// Every positive term must match in the name or body; negated terms must not.
// With no positive term or filter the query matches every document.
func BuildQuery(q models.SegmentedQuery, fileTypes []string, dr *models.DateRange, nameBoost float64) blevequery.Query {
	if nameBoost <= 0 {
		nameBoost = 1
	}
	var must []blevequery.Query
	for _, t := range q.Prefix {
		must = append(must, prefixQuery(t.Text, nameBoost))
	}
	for _, t := range q.Quoted {
		must = append(must, phraseQuery(t.Text, nameBoost))
	}
	for _, t := range q.Punctuated {
		must = append(must, phraseQuery(t.Text, nameBoost))
	}
	if len(fileTypes) > 0 {
		types := make([]blevequery.Query, 0, len(fileTypes))
		for _, ft := range fileTypes {
			tq := bleve.NewTermQuery(ft)
			tq.SetField(FieldFileType)
			types = append(types, tq)
		}
		must = append(must, bleve.NewDisjunctionQuery(types...))
	}
	if dr != nil {
		must = append(must, dateRangeQuery(dr))
	}
	if len(must) == 0 {
		must = append(must, bleve.NewMatchAllQuery())
	}

	bq := bleve.NewBooleanQuery()
	bq.AddMust(must...)
	for _, t := range q.Negated {
		bq.AddMustNot(phraseQuery(t.Text, 1))
	}
	return bq
}

// prefixQuery matches words starting with text. Text the analyzer would split
// (CJK, embedded symbols) falls back to an all-terms match.
func prefixQuery(text string, nameBoost float64) blevequery.Query {
	text = strings.ToLower(text)
	if !singleToken(text) {
		name := bleve.NewMatchQuery(text)
		name.SetField(FieldName)
		name.SetOperator(blevequery.MatchQueryOperatorAnd)
		name.SetBoost(nameBoost)
		body := bleve.NewMatchQuery(text)
		body.SetField(FieldBody)
		body.SetOperator(blevequery.MatchQueryOperatorAnd)
		return bleve.NewDisjunctionQuery(name, body)
	}
	name := bleve.NewPrefixQuery(text)
	name.SetField(FieldName)
	name.SetBoost(nameBoost)
	body := bleve.NewPrefixQuery(text)
	body.SetField(FieldBody)
	return bleve.NewDisjunctionQuery(name, body)
}

func phraseQuery(text string, nameBoost float64) blevequery.Query {
	name := bleve.NewMatchPhraseQuery(text)
	name.SetField(FieldName)
	name.SetBoost(nameBoost)
	body := bleve.NewMatchPhraseQuery(text)
	body.SetField(FieldBody)
	return bleve.NewDisjunctionQuery(name, body)
}

func dateRangeQuery(dr *models.DateRange) blevequery.Query {
	start, end := float64(dr.Start), float64(dr.End)
	inclusive := true
	nq := bleve.NewNumericRangeInclusiveQuery(&start, &end, &inclusive, &inclusive)
	nq.SetField(FieldLastModified)
	return nq
}

func singleToken(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul, unicode.Thai) {
			return false
		}
	}
	return true
}
