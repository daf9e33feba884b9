package pubmed

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/medtrust/internal/model"
)

// The efetch XML schema, reduced to the fields the store cares about.
type articleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation medlineCitation `xml:"MedlineCitation"`
}

type medlineCitation struct {
	PMID          string       `xml:"PMID"`
	Article       articleData  `xml:"Article"`
	DateCompleted *articleDate `xml:"DateCompleted"`
	DateRevised   *articleDate `xml:"DateRevised"`
}

type articleData struct {
	Title    string     `xml:"ArticleTitle"`
	Abstract *abstract  `xml:"Abstract"`
	Authors  authorList `xml:"AuthorList"`
	Journal  journal    `xml:"Journal"`
}

type abstract struct {
	Sections []abstractText `xml:"AbstractText"`
}

type abstractText struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

type authorList struct {
	Authors []author `xml:"Author"`
}

type author struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type journal struct {
	Title   string       `xml:"Title"`
	PubDate *articleDate `xml:"JournalIssue>PubDate"`
}

type articleDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

// parseArticleSet converts an efetch response into articles. Entries
// missing a PMID, title, or abstract are dropped.
func parseArticleSet(data []byte) ([]model.Article, error) {
	var set articleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse efetch response: %w", err)
	}

	var articles []model.Article
	for _, entry := range set.Articles {
		if a, ok := parseArticle(entry.Citation); ok {
			articles = append(articles, a)
		}
	}
	return articles, nil
}

func parseArticle(c medlineCitation) (model.Article, bool) {
	pmid := strings.TrimSpace(c.PMID)
	title := strings.TrimSpace(c.Article.Title)
	abstract := joinAbstract(c.Article.Abstract)
	if pmid == "" || title == "" || abstract == "" {
		return model.Article{}, false
	}

	var authors []string
	for _, a := range c.Article.Authors.Authors {
		if a.LastName == "" {
			continue
		}
		name := a.LastName
		if a.ForeName != "" {
			name = a.ForeName + " " + name
		}
		authors = append(authors, name)
	}

	return model.Article{
		PMID:            pmid,
		Title:           title,
		Abstract:        abstract,
		Authors:         authors,
		Journal:         strings.TrimSpace(c.Article.Journal.Title),
		PublicationDate: c.date(),
	}, true
}

// joinAbstract flattens an abstract into one string. Structured
// abstracts keep their section labels ("Background: ... Results: ...").
func joinAbstract(a *abstract) string {
	if a == nil {
		return ""
	}
	var parts []string
	for _, sec := range a.Sections {
		text := strings.TrimSpace(sec.Text)
		if sec.Label != "" {
			parts = append(parts, sec.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// date picks the best available publication date, preferring the journal
// issue date over Medline processing dates.
func (c medlineCitation) date() *time.Time {
	for _, d := range []*articleDate{c.Article.Journal.PubDate, c.DateCompleted, c.DateRevised} {
		if t, ok := parseDate(d); ok {
			return &t
		}
	}
	return nil
}

func parseDate(d *articleDate) (time.Time, bool) {
	if d == nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(d.Year))
	if err != nil {
		return time.Time{}, false
	}
	month := 1
	if m, err := strconv.Atoi(strings.TrimSpace(d.Month)); err == nil {
		month = m
	}
	day := 1
	if v, err := strconv.Atoi(strings.TrimSpace(d.Day)); err == nil {
		day = v
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}
