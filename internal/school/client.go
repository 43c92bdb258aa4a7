package school

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/felixgeelhaar/schoolctl/internal/fetch"
	"github.com/felixgeelhaar/schoolctl/internal/gateway"
)

// Resource endpoints.
const (
	StudentsEndpoint      = "/students"
	FeesEndpoint          = "/fees"
	PersonnelEndpoint     = "/users/personnel"
	TimetablesEndpoint    = "/timetables/class"
	AnnouncementsEndpoint = "/announcements"
	ExportsEndpoint       = "/exports"
)

// AcademicYearParam is the query parameter carrying the selected year.
const AcademicYearParam = "academicYearId"

// Scope supplies the academic year of year-scoped requests.
type Scope interface {
	AcademicYearQuery() string
}

// Client reads school resources through the gateway. Reads are cached per
// endpoint and filters; writes invalidate the endpoint.
type Client struct {
	gw    *gateway.Client
	scope Scope
	cache *fetch.Cache
}

// New creates a resource client. A nil cache disables caching.
func New(gw *gateway.Client, scope Scope, cache *fetch.Cache) *Client {
	return &Client{gw: gw, scope: scope, cache: cache}
}

func (c *Client) scoped(v url.Values) url.Values {
	if c.scope == nil {
		return v
	}
	if year := c.scope.AcademicYearQuery(); year != "" {
		v.Set(AcademicYearParam, year)
	}
	return v
}

func cached[T any](ctx context.Context, c *Client, key fetch.Key, fn func(context.Context) (T, error)) (T, error) {
	if c.cache == nil {
		return fn(ctx)
	}
	return fetch.Get(ctx, c.cache, key, fn)
}

func list[T any](ctx context.Context, c *Client, endpoint string, params url.Values) (*Page[T], error) {
	key := fetch.NewKey(endpoint, params)
	return cached(ctx, c, key, func(ctx context.Context) (*Page[T], error) {
		env, err := gateway.GetJSON[[]T](ctx, c.gw, endpoint, gateway.Options{Query: key.Params})
		if err != nil {
			return nil, err
		}
		page := &Page[T]{Items: env.Data}
		if env.Meta != nil {
			page.Meta = *env.Meta
		} else {
			page.Meta = gateway.Meta{Total: len(env.Data), Page: 1, Limit: len(env.Data), TotalPages: 1}
		}
		return page, nil
	})
}

// Students lists students of the selected academic year.
func (c *Client) Students(ctx context.Context, p ListParams) (*Page[Student], error) {
	return list[Student](ctx, c, StudentsEndpoint, c.scoped(p.Values()))
}

// DeleteStudent deletes a student and drops cached student lists.
func (c *Client) DeleteStudent(ctx context.Context, id int) error {
	_, err := c.gw.Delete(ctx, StudentsEndpoint+"/"+strconv.Itoa(id), gateway.Options{}, gateway.JSON)
	if err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Invalidate(StudentsEndpoint)
	}
	return nil
}

// Fees lists fees of the selected academic year.
func (c *Client) Fees(ctx context.Context, p ListParams) (*Page[Fee], error) {
	return list[Fee](ctx, c, FeesEndpoint, c.scoped(p.Values()))
}

// Personnel lists staff members.
func (c *Client) Personnel(ctx context.Context, p ListParams) (*Page[Personnel], error) {
	return list[Personnel](ctx, c, PersonnelEndpoint, p.Values())
}

// Announcements lists announcements.
func (c *Client) Announcements(ctx context.Context, p ListParams) (*Page[Announcement], error) {
	return list[Announcement](ctx, c, AnnouncementsEndpoint, p.Values())
}

// Timetable returns the timetable of a class for the selected academic year.
func (c *Client) Timetable(ctx context.Context, classID int) ([]TimetableSlot, error) {
	endpoint := TimetablesEndpoint + "/" + strconv.Itoa(classID)
	key := fetch.NewKey(endpoint, c.scoped(url.Values{}))
	return cached(ctx, c, key, func(ctx context.Context) ([]TimetableSlot, error) {
		env, err := gateway.GetJSON[[]TimetableSlot](ctx, c.gw, endpoint, gateway.Options{Query: key.Params})
		if err != nil {
			return nil, err
		}
		return env.Data, nil
	})
}

// Export downloads an export as binary data. Exports are never cached.
func (c *Client) Export(ctx context.Context, kind, format string, p ListParams) (*gateway.BlobData, error) {
	params := c.scoped(p.Values())
	if format != "" {
		params.Set("format", format)
	}
	result, err := c.gw.Request(ctx, ExportsEndpoint+"/"+url.PathEscape(kind), gateway.Options{
		Method: http.MethodGet,
		Query:  params,
	}, gateway.Blob)
	if err != nil {
		return nil, err
	}
	if result.Empty {
		return &gateway.BlobData{}, nil
	}
	return result.Blob, nil
}
