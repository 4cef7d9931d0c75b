package routes

import (
	"context"
	_ "embed"
	"errors"
	"html/template"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"poolview/pkg/query"
	"poolview/pkg/workpools"
)

// WorkPoolDetailPath is the gin pattern for a single pool page.
const WorkPoolDetailPath = "/work-pools/work-pool/:workPoolName"

//go:embed templates/workpool_detail.html
var workPoolDetailHTML string

var workPoolDetailTmpl = template.Must(template.New("workpool_detail").Parse(workPoolDetailHTML))

// WorkPoolDetailParams are the route parameters of the pool page.
type WorkPoolDetailParams struct {
	WorkPoolName string
}

// WorkPoolDetail builds the pool page: the pool is ensured in qc, then its name rendered.
func WorkPoolDetail(qc *query.Client, api workpools.Getter) Route[WorkPoolDetailParams, workpools.WorkPool] {
	return Route[WorkPoolDetailParams, workpools.WorkPool]{
		Name: "work-pool-detail",
		Path: WorkPoolDetailPath,
		Params: func(c *gin.Context) (WorkPoolDetailParams, error) {
			return WorkPoolDetailParams{WorkPoolName: c.Param("workPoolName")}, nil
		},
		Loader: func(ctx context.Context, p WorkPoolDetailParams) (query.Ready[workpools.WorkPool], error) {
			return query.EnsureQueryData(ctx, qc, workpools.BuildGetWorkPoolQuery(api, p.WorkPoolName))
		},
		Component: RenderWorkPoolDetail,
	}
}

// RenderWorkPoolDetail writes the pool page for already loaded data.
func RenderWorkPoolDetail(w io.Writer, data query.Ready[workpools.WorkPool]) error {
	return workPoolDetailTmpl.Execute(w, data.Data())
}

// StatusFor classifies route failures for the error boundary.
func StatusFor(err error) int {
	var apiErr *workpools.APIError
	var paramErr *ParamError
	var loadErr *LoadError
	switch {
	case errors.Is(err, workpools.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// the client left; DefaultStatus reports it
		return 0
	case errors.As(err, &paramErr):
		return http.StatusBadRequest
	case errors.As(err, &apiErr), errors.As(err, &loadErr):
		return http.StatusBadGateway
	}
	return 0
}
