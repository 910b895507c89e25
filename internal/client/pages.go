package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
)

const pageFields = `
			id
			path
			locale
			title
			description
			content
			contentType
			editor
			isPublished
			isPrivate
			tags { tag }
			authorId
			authorName
			authorEmail
			createdAt
			updatedAt`

const responseResultFields = `
			responseResult {
				succeeded
				errorCode
				slug
				message
			}`

var (
	getPageQuery = `query($id: Int!) {
	pages {
		single(id: $id) {` + pageFields + `
		}
	}
}`

	getPageByPathQuery = `query($path: String!, $locale: String!) {
	pages {
		singleByPath(path: $path, locale: $locale) {` + pageFields + `
		}
	}
}`

	listPagesQuery = `query($limit: Int, $orderBy: PageOrderBy, $orderByDirection: PageOrderByDirection, $tags: [String!], $locale: String, $creatorId: Int, $authorId: Int) {
	pages {
		list(limit: $limit, orderBy: $orderBy, orderByDirection: $orderByDirection, tags: $tags, locale: $locale, creatorId: $creatorId, authorId: $authorId) {
			id
			path
			locale
			title
			description
			contentType
			isPublished
			isPrivate
			tags
			createdAt
			updatedAt
		}
	}
}`

	searchPagesQuery = `query($query: String!, $path: String, $locale: String) {
	pages {
		search(query: $query, path: $path, locale: $locale) {
			results {
				id
				title
				description
				path
				locale
			}
			totalHits
		}
	}
}`

	createPageMutation = `mutation($content: String!, $description: String!, $editor: String!, $isPublished: Boolean!, $isPrivate: Boolean!, $locale: String!, $path: String!, $tags: [String]!, $title: String!) {
	pages {
		create(content: $content, description: $description, editor: $editor, isPublished: $isPublished, isPrivate: $isPrivate, locale: $locale, path: $path, tags: $tags, title: $title) {` + responseResultFields + `
			page {` + pageFields + `
			}
		}
	}
}`

	updatePageMutation = `mutation($id: Int!, $title: String, $content: String, $description: String, $isPublished: Boolean, $isPrivate: Boolean, $tags: [String]) {
	pages {
		update(id: $id, title: $title, content: $content, description: $description, isPublished: $isPublished, isPrivate: $isPrivate, tags: $tags) {` + responseResultFields + `
			page {` + pageFields + `
			}
		}
	}
}`

	deletePageMutation = `mutation($id: Int!) {
	pages {
		delete(id: $id) {` + responseResultFields + `
		}
	}
}`
)

// tagList decodes page tags given either as strings or as {tag} objects;
// Wiki.js uses both depending on the query.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage

	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding tags: %w", err)
	}

	tags := make([]string, 0, len(raw))

	for _, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			tags = append(tags, name)

			continue
		}

		var obj struct {
			Tag string `json:"tag"`
		}

		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("decoding tag: %w", err)
		}

		tags = append(tags, obj.Tag)
	}

	*t = tags

	return nil
}

type pageWire struct {
	wikijs.Page
	Tags tagList `json:"tags"`
}

func (w *pageWire) toPage() wikijs.Page {
	page := w.Page
	page.Tags = []string(w.Tags)

	if page.Tags == nil {
		page.Tags = []string{}
	}

	return page
}

// clonePage copies a page so callers cannot modify a cached value.
func clonePage(page wikijs.Page) *wikijs.Page {
	page.Tags = slices.Clone(page.Tags)

	return &page
}

func pageResource(id int) string {
	return "page/" + strconv.Itoa(id)
}

// PagesClient implements wikijs.PagesClient.
type PagesClient struct {
	client *Client
}

// NewPagesClient creates a new pages client.
func NewPagesClient(client *Client) *PagesClient {
	return &PagesClient{client: client}
}

// Get implements wikijs.PagesClient.Get.
func (p *PagesClient) Get(ctx context.Context, id int) (*wikijs.Page, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", wikijs.ErrInvalidPageID, id)
	}

	resource := pageResource(id)

	op := wikijs.Operation{
		TargetKey:   constants.TargetPages,
		Fingerprint: "get:" + resource,
		Cacheable:   true,
		Resources:   []string{resource},
		Execute: func(ctx context.Context) (any, error) {
			var data struct {
				Pages struct {
					Single *pageWire `json:"single"`
				} `json:"pages"`
			}

			if err := p.client.graphQL(ctx, getPageQuery, map[string]interface{}{"id": id}, &data); err != nil {
				return nil, err
			}

			if data.Pages.Single == nil {
				return nil, &wikijs.APIError{Class: wikijs.ClassNotFound, Message: fmt.Sprintf("page %d not found", id)}
			}

			return data.Pages.Single.toPage(), nil
		},
	}

	page, err := wikijs.ExecuteAs[wikijs.Page](ctx, p.client.pipeline, op)
	if err != nil {
		return nil, fmt.Errorf("getting page %d: %w", id, err)
	}

	return clonePage(page), nil
}

// GetByPath implements wikijs.PagesClient.GetByPath. The cached result is
// tagged with the page's ID once known, so updates by ID evict it.
func (p *PagesClient) GetByPath(ctx context.Context, path, locale string) (*wikijs.Page, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, wikijs.ErrPathRequired
	}

	if locale == "" {
		locale = constants.DefaultLocale
	}

	op := wikijs.Operation{
		TargetKey:   constants.TargetPages,
		Fingerprint: "getByPath:page/" + locale + "/" + path,
		Cacheable:   true,
		TagsFor: func(result any) []string {
			if page, ok := result.(wikijs.Page); ok {
				return []string{pageResource(page.ID)}
			}

			return nil
		},
		Execute: func(ctx context.Context) (any, error) {
			var data struct {
				Pages struct {
					SingleByPath *pageWire `json:"singleByPath"`
				} `json:"pages"`
			}

			variables := map[string]interface{}{"path": path, "locale": locale}
			if err := p.client.graphQL(ctx, getPageByPathQuery, variables, &data); err != nil {
				return nil, err
			}

			if data.Pages.SingleByPath == nil {
				return nil, &wikijs.APIError{Class: wikijs.ClassNotFound, Message: fmt.Sprintf("page %q (%s) not found", path, locale)}
			}

			return data.Pages.SingleByPath.toPage(), nil
		},
	}

	page, err := wikijs.ExecuteAs[wikijs.Page](ctx, p.client.pipeline, op)
	if err != nil {
		return nil, fmt.Errorf("getting page %q: %w", path, err)
	}

	return clonePage(page), nil
}

// List implements wikijs.PagesClient.List. Results default to title order.
// Offset is applied after the cache, so the cached value is the server listing.
func (p *PagesClient) List(ctx context.Context, opts *wikijs.PageListOptions) ([]wikijs.Page, error) {
	variables, fingerprint, err := listVariables(opts)
	if err != nil {
		return nil, err
	}

	op := wikijs.Operation{
		TargetKey:   constants.TargetPages,
		Fingerprint: fingerprint,
		Cacheable:   true,
		Resources:   []string{constants.TargetPages},
		Execute: func(ctx context.Context) (any, error) {
			var data struct {
				Pages struct {
					List []pageWire `json:"list"`
				} `json:"pages"`
			}

			if err := p.client.graphQL(ctx, listPagesQuery, variables, &data); err != nil {
				return nil, err
			}

			pages := make([]wikijs.Page, 0, len(data.Pages.List))
			for i := range data.Pages.List {
				pages = append(pages, data.Pages.List[i].toPage())
			}

			return pages, nil
		},
	}

	pages, err := wikijs.ExecuteAs[[]wikijs.Page](ctx, p.client.pipeline, op)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}

	if opts != nil && opts.Offset > 0 {
		pages = pages[min(opts.Offset, len(pages)):]
	}

	out := make([]wikijs.Page, len(pages))
	for i, page := range pages {
		out[i] = *clonePage(page)
	}

	return out, nil
}

// listVariables validates opts and returns the query variables together with
// a canonical cache fingerprint.
func listVariables(opts *wikijs.PageListOptions) (map[string]interface{}, string, error) {
	if opts == nil {
		opts = &wikijs.PageListOptions{}
	}

	orderBy := strings.ToUpper(opts.OrderBy)
	if orderBy == "" {
		orderBy = wikijs.OrderByTitle
	}

	direction := strings.ToUpper(opts.OrderByDirection)
	if direction == "" {
		direction = "ASC"
	}

	switch {
	case opts.Limit < 0:
		return nil, "", fmt.Errorf("%w: limit must not be negative", wikijs.ErrInvalidListOpts)
	case opts.Offset < 0:
		return nil, "", fmt.Errorf("%w: offset must not be negative", wikijs.ErrInvalidListOpts)
	case !slices.Contains([]string{wikijs.OrderByCreated, wikijs.OrderByID, wikijs.OrderByPath, wikijs.OrderByTitle, wikijs.OrderByUpdated}, orderBy):
		return nil, "", fmt.Errorf("%w: unknown order %q", wikijs.ErrInvalidListOpts, opts.OrderBy)
	case direction != "ASC" && direction != "DESC":
		return nil, "", fmt.Errorf("%w: direction must be ASC or DESC", wikijs.ErrInvalidListOpts)
	}

	variables := map[string]interface{}{
		"orderBy":          orderBy,
		"orderByDirection": direction,
	}
	key := url.Values{
		"orderBy":   {orderBy},
		"direction": {direction},
	}

	// The server has no offset, so it is asked for the skipped pages too.
	if opts.Limit > 0 {
		variables["limit"] = opts.Offset + opts.Limit
		key.Set("limit", strconv.Itoa(opts.Offset+opts.Limit))
	}

	if len(opts.Tags) > 0 {
		tags := slices.Clone(opts.Tags)
		slices.Sort(tags)
		variables["tags"] = tags
		key["tags"] = tags
	}

	if opts.Locale != "" {
		variables["locale"] = opts.Locale
		key.Set("locale", opts.Locale)
	}

	if opts.CreatorID > 0 {
		variables["creatorId"] = opts.CreatorID
		key.Set("creatorId", strconv.Itoa(opts.CreatorID))
	}

	if opts.AuthorID > 0 {
		variables["authorId"] = opts.AuthorID
		key.Set("authorId", strconv.Itoa(opts.AuthorID))
	}

	return variables, "list:pages?" + key.Encode(), nil
}

// Search implements wikijs.PagesClient.Search.
func (p *PagesClient) Search(ctx context.Context, query string, opts *wikijs.PageSearchOptions) (*wikijs.PageSearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, wikijs.ErrQueryRequired
	}

	if opts == nil {
		opts = &wikijs.PageSearchOptions{}
	}

	variables := map[string]interface{}{"query": query}
	key := url.Values{"q": {query}}

	if opts.Path != "" {
		variables["path"] = opts.Path
		key.Set("path", opts.Path)
	}

	if opts.Locale != "" {
		variables["locale"] = opts.Locale
		key.Set("locale", opts.Locale)
	}

	op := wikijs.Operation{
		TargetKey:   constants.TargetPages,
		Fingerprint: "search:pages?" + key.Encode(),
		Cacheable:   true,
		Resources:   []string{constants.TargetPages},
		Execute: func(ctx context.Context) (any, error) {
			var data struct {
				Pages struct {
					Search wikijs.PageSearchResponse `json:"search"`
				} `json:"pages"`
			}

			if err := p.client.graphQL(ctx, searchPagesQuery, variables, &data); err != nil {
				return nil, err
			}

			return data.Pages.Search, nil
		},
	}

	result, err := wikijs.ExecuteAs[wikijs.PageSearchResponse](ctx, p.client.pipeline, op)
	if err != nil {
		return nil, fmt.Errorf("searching pages: %w", err)
	}

	result.Results = slices.Clone(result.Results)
	if result.Results == nil {
		result.Results = []wikijs.PageSearchResult{}
	}

	return &result, nil
}

type pageMutationResult struct {
	ResponseResult *responseResult `json:"responseResult"`
	Page           *pageWire       `json:"page"`
}

// Create implements wikijs.PagesClient.Create.
func (p *PagesClient) Create(ctx context.Context, page *wikijs.PageCreate) (*wikijs.Page, error) {
	if page == nil || strings.TrimSpace(page.Title) == "" {
		return nil, wikijs.ErrTitleRequired
	}

	path := strings.Trim(strings.TrimSpace(page.Path), "/")
	if path == "" {
		return nil, wikijs.ErrPathRequired
	}

	variables := map[string]interface{}{
		"title":       page.Title,
		"path":        path,
		"content":     page.Content,
		"description": page.Description,
		"editor":      page.Editor,
		"locale":      page.Locale,
		"isPublished": page.IsPublished,
		"isPrivate":   page.IsPrivate,
		"tags":        page.Tags,
	}

	if page.Description == "" {
		variables["description"] = "Created via SDK: " + page.Title
	}

	if page.Editor == "" {
		variables["editor"] = constants.DefaultEditor
	}

	if page.Locale == "" {
		variables["locale"] = constants.DefaultLocale
	}

	if page.Tags == nil {
		variables["tags"] = []string{}
	}

	op := wikijs.Operation{
		TargetKey:   constants.TargetPages,
		Invalidates: []string{constants.TargetPages},
		Execute: func(ctx context.Context) (any, error) {
			var data struct {
				Pages struct {
					Create pageMutationResult `json:"create"`
				} `json:"pages"`
			}

			if err := p.client.graphQL(ctx, createPageMutation, variables, &data); err != nil {
				return nil, err
			}

			return data.Pages.Create.page("creating page")
		},
	}

	created, err := wikijs.ExecuteAs[wikijs.Page](ctx, p.client.pipeline, op)
	if err != nil {
		return nil, fmt.Errorf("creating page %q: %w", path, err)
	}

	return clonePage(created), nil
}

// Update implements wikijs.PagesClient.Update.
func (p *PagesClient) Update(ctx context.Context, id int, update *wikijs.PageUpdate) (*wikijs.Page, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", wikijs.ErrInvalidPageID, id)
	}

	if update == nil {
		update = &wikijs.PageUpdate{}
	}

	variables := map[string]interface{}{"id": id}

	if update.Title != nil {
		variables["title"] = *update.Title
	}

	if update.Content != nil {
		variables["content"] = *update.Content
	}

	if update.Description != nil {
		variables["description"] = *update.Description
	}

	if update.IsPublished != nil {
		variables["isPublished"] = *update.IsPublished
	}

	if update.IsPrivate != nil {
		variables["isPrivate"] = *update.IsPrivate
	}

	if update.Tags != nil {
		variables["tags"] = update.Tags
	}

	op := wikijs.Operation{
		TargetKey:   constants.TargetPages,
		Invalidates: []string{pageResource(id), constants.TargetPages},
		Execute: func(ctx context.Context) (any, error) {
			var data struct {
				Pages struct {
					Update pageMutationResult `json:"update"`
				} `json:"pages"`
			}

			if err := p.client.graphQL(ctx, updatePageMutation, variables, &data); err != nil {
				return nil, err
			}

			return data.Pages.Update.page("updating page")
		},
	}

	updated, err := wikijs.ExecuteAs[wikijs.Page](ctx, p.client.pipeline, op)
	if err != nil {
		return nil, fmt.Errorf("updating page %d: %w", id, err)
	}

	return clonePage(updated), nil
}

// Delete implements wikijs.PagesClient.Delete.
func (p *PagesClient) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", wikijs.ErrInvalidPageID, id)
	}

	op := wikijs.Operation{
		TargetKey:   constants.TargetPages,
		Invalidates: []string{pageResource(id), constants.TargetPages},
		Execute: func(ctx context.Context) (any, error) {
			var data struct {
				Pages struct {
					Delete struct {
						ResponseResult *responseResult `json:"responseResult"`
					} `json:"delete"`
				} `json:"pages"`
			}

			if err := p.client.graphQL(ctx, deletePageMutation, map[string]interface{}{"id": id}, &data); err != nil {
				return nil, err
			}

			if err := data.Pages.Delete.ResponseResult.check("deleting page"); err != nil {
				return nil, err
			}

			return true, nil
		},
	}

	if _, err := p.client.pipeline.Execute(ctx, op); err != nil {
		return fmt.Errorf("deleting page %d: %w", id, err)
	}

	return nil
}

func (r *pageMutationResult) page(action string) (any, error) {
	if err := r.ResponseResult.check(action); err != nil {
		return nil, err
	}

	if r.Page == nil {
		return nil, &wikijs.APIError{
			Class:   wikijs.ClassClient,
			Message: action + ": " + constants.ErrMissingData.Error(),
			Err:     constants.ErrMissingData,
		}
	}

	return r.Page.toPage(), nil
}
