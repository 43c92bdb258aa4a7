package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

// Contract validates JSON responses against an OpenAPI document. Endpoints
// the document does not describe are not checked.
type Contract struct {
	doc      *openapi3.T
	path     string
	basePath string
}

// LoadContract loads and validates an OpenAPI document. basePath is the path
// component of the gateway base URL (for example "/api"); it is stripped
// from request paths before matching.
func LoadContract(ctx context.Context, specPath, baseURL string) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	loader.Context = ctx

	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGatewayContract, "failed to load OpenAPI document", err).
			WithSuggestion("Check gateway.openapi in the config file")
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrCodeGatewayContract, "invalid OpenAPI document", err)
	}

	basePath := ""
	if u, err := url.Parse(baseURL); err == nil {
		basePath = strings.TrimRight(u.Path, "/")
	}

	return &Contract{doc: doc, path: specPath, basePath: basePath}, nil
}

// Path returns the document location.
func (c *Contract) Path() string {
	return c.path
}

// Operations lists "METHOD /path" for every operation in the document.
func (c *Contract) Operations() []string {
	var ops []string
	if c.doc.Paths == nil {
		return ops
	}
	for path, item := range c.doc.Paths.Map() {
		for method := range item.Operations() {
			ops = append(ops, method+" "+path)
		}
	}
	return ops
}

// ValidateResponse checks one response. It returns nil when the operation is
// not documented.
func (c *Contract) ValidateResponse(ctx context.Context, req *http.Request, status int, header http.Header, body []byte) error {
	route := c.findRoute(req.Method, req.URL.Path)
	if route == nil {
		return nil
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request: req,
			Route:   route,
		},
		Status: status,
		Header: header,
		Options: &openapi3filter.Options{
			IncludeResponseStatus: true,
			MultiError:            true,
		},
	}
	input.SetBodyBytes(body)

	if err := openapi3filter.ValidateResponse(ctx, input); err != nil {
		return errors.Wrap(errors.ErrCodeGatewayContract,
			fmt.Sprintf("response of %s %s does not match %s", req.Method, route.Path, c.path), err)
	}
	return nil
}

// findRoute matches a request against the document's path templates.
func (c *Contract) findRoute(method, requestPath string) *routers.Route {
	if c.doc.Paths == nil {
		return nil
	}

	requestPath = strings.TrimPrefix(requestPath, c.basePath)
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")

	for specPath, item := range c.doc.Paths.Map() {
		op := item.GetOperation(strings.ToUpper(method))
		if op == nil {
			continue
		}
		if !matchSegments(requestSegments, strings.Split(strings.Trim(specPath, "/"), "/")) {
			continue
		}
		return &routers.Route{
			Spec:      c.doc,
			Path:      specPath,
			PathItem:  item,
			Method:    strings.ToUpper(method),
			Operation: op,
		}
	}
	return nil
}

func matchSegments(request, template []string) bool {
	if len(request) != len(template) {
		return false
	}
	for i := range request {
		seg := template[i]
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			continue
		}
		if request[i] != seg {
			return false
		}
	}
	return true
}
