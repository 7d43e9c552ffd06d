package external

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/bioeq-design-server/internal/domain"
)

// pkFilter restricts searches to pharmacokinetic studies in healthy subjects.
const pkFilter = "(pharmacokinetics OR bioequivalence OR bioavailability) AND healthy"

// PubMedClient handles interactions with NCBI PubMed via E-utilities
type PubMedClient struct {
	baseURL    string
	apiKey     string
	email      string // Required by NCBI for large-scale queries
	tool       string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// PubMedConfig contains configuration for PubMed client
type PubMedConfig struct {
	BaseURL   string
	APIKey    string
	Email     string
	Tool      string
	Timeout   time.Duration
	RateLimit int
}

// NewPubMedClient creates a new PubMed API client
func NewPubMedClient(config PubMedConfig) *PubMedClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	}
	if !strings.HasSuffix(config.BaseURL, "/") {
		config.BaseURL += "/"
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 3 // NCBI limit without an API key
		if config.APIKey != "" {
			config.RateLimit = 10
		}
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &PubMedClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		email:   config.Email,
		tool:    config.Tool,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// eSearchResult represents the XML response from esearch
type eSearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
	ErrorList struct {
		PhraseNotFound []string `xml:"PhraseNotFound"`
	} `xml:"ErrorList"`
}

// markupText keeps the raw inner XML so nested inline markup can be flattened.
type markupText struct {
	Label string `xml:"Label,attr"`
	Inner string `xml:",innerxml"`
}

// pubmedArticleSet represents the XML response from efetch
type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			ArticleTitle markupText `xml:"ArticleTitle"`
			Abstract     struct {
				AbstractText []markupText `xml:"AbstractText"`
			} `xml:"Abstract"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// flatten strips inline markup and decodes entities.
func (m markupText) flatten() string {
	text := tagPattern.ReplaceAllString(m.Inner, "")
	return strings.Join(strings.Fields(html.UnescapeString(text)), " ")
}

// BuildQuery assembles the boolean search term for q.
func BuildQuery(q domain.SearchQuery) string {
	var substances []string
	for _, s := range q.Substances {
		if s = strings.TrimSpace(s); s != "" {
			substances = append(substances, s)
		}
	}
	if len(substances) == 0 {
		return ""
	}

	var b strings.Builder
	if len(substances) == 1 {
		b.WriteString(substances[0])
	} else {
		b.WriteString("(" + strings.Join(substances, " OR ") + ")")
	}
	b.WriteString(" AND " + pkFilter)

	var focus []string
	for _, term := range q.FocusTerms {
		if term = strings.TrimSpace(term); term != "" {
			focus = append(focus, strconv.Quote(term))
		}
	}
	if len(focus) > 0 {
		b.WriteString(" AND (" + strings.Join(focus, " OR ") + ")")
	}
	return b.String()
}

// Search returns PubMed identifiers matching q.
func (p *PubMedClient) Search(ctx context.Context, q domain.SearchQuery) ([]string, error) {
	term := BuildQuery(q)
	if term == "" {
		return nil, nil
	}
	if q.MaxResults <= 0 {
		q.MaxResults = 10
	}

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmode": {"xml"},
		"retmax":  {strconv.Itoa(q.MaxResults)},
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}

	body, err := p.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("PubMed search: %w", err)
	}

	var result eSearchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing PubMed search response: %v: %w", err, ErrMalformedResponse)
	}
	return result.IDList.IDs, nil
}

// FetchAbstracts retrieves titles and abstracts for the given identifiers.
func (p *PubMedClient) FetchAbstracts(ctx context.Context, ids []string) ([]domain.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
		"retmax":  {strconv.Itoa(len(ids))},
	}

	body, err := p.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("PubMed fetch: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parsing PubMed fetch response: %v: %w", err, ErrMalformedResponse)
	}

	articles := make([]domain.Article, 0, len(set.Articles))
	for _, a := range set.Articles {
		citation := a.MedlineCitation
		var parts []string
		for _, text := range citation.Article.Abstract.AbstractText {
			if part := text.flatten(); part != "" {
				parts = append(parts, part)
			}
		}
		articles = append(articles, domain.Article{
			ID:       strings.TrimSpace(citation.PMID),
			Title:    citation.Article.ArticleTitle.flatten(),
			Abstract: strings.Join(parts, " "),
		})
	}
	return articles, nil
}

// get performs a rate limited E-utilities GET request.
func (p *PubMedClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}
	if p.email != "" {
		params.Set("email", p.email)
	}
	if p.tool != "" {
		params.Set("tool", p.tool)
	}

	fullURL := fmt.Sprintf("%s%s?%s", p.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Service: "PubMed", StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
