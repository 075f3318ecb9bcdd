package listings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonathan/job-matcher/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readme = `# Summer 2026 Tech Internships

Some intro text.

<table>
<thead>
<tr><th>Company</th><th>Role</th><th>Location</th><th>Application</th><th>Age</th></tr>
</thead>
<tbody>
<tr>
<td><strong><a href="https://simplify.jobs/c/Acme">Acme</a></strong></td>
<td>Software Engineering Intern</td>
<td>San Francisco, CA</td>
<td><div align="center"><a href="https://acme.example/jobs/1"><img src="apply.png" alt="Apply"></a></div></td>
<td>0d</td>
</tr>
<tr>
<td>↳</td>
<td>Data Science Intern</td>
<td>NYC</td>
<td><a href="https://acme.example/jobs/2">Apply</a></td>
<td>1d</td>
</tr>
<tr>
<td>Broken</td>
<td>Only two cells</td>
</tr>
<tr>
<td>Globex</td>
<td>Backend Intern</td>
<td>Remote<br>Austin, TX</td>
<td>🔒</td>
<td>2d</td>
</tr>
</tbody>
</table>
`

func TestParse_CarryForward(t *testing.T) {
	jobs, err := Parse(strings.NewReader(readme), 10, SubListingCarryForward)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, types.JobListing{
		Company:  "Acme",
		Role:     "Software Engineering Intern",
		Location: "San Francisco, CA",
		Link:     "https://acme.example/jobs/1",
	}, jobs[0])

	assert.Equal(t, "Acme", jobs[1].Company)
	assert.Equal(t, "Data Science Intern", jobs[1].Role)

	assert.Equal(t, "Globex", jobs[2].Company)
	assert.Equal(t, "Remote Austin, TX", jobs[2].Location)
	assert.Equal(t, types.NoLink, jobs[2].Link)
}

func TestParse_Skip(t *testing.T) {
	jobs, err := Parse(strings.NewReader(readme), 10, SubListingSkip)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Acme", jobs[0].Company)
	assert.Equal(t, "Globex", jobs[1].Company)
}

func TestParse_Limit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"one", 1, 1},
		{"two", 2, 2},
		{"zero means default", 0, 3},
		{"negative means default", -5, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := Parse(strings.NewReader(readme), tt.limit, SubListingCarryForward)
			require.NoError(t, err)
			assert.Len(t, jobs, tt.want)
		})
	}
}

func TestParse_WellFormedRowsHaveAllFields(t *testing.T) {
	jobs, err := Parse(strings.NewReader(readme), 10, SubListingCarryForward)
	require.NoError(t, err)
	for _, j := range jobs {
		assert.NotEmpty(t, j.Company)
		assert.NotEmpty(t, j.Role)
		assert.NotEmpty(t, j.Location)
		assert.NotEmpty(t, j.Link)
	}
}

func TestParse_LeadingSubListingWithoutCompany(t *testing.T) {
	html := `<table><tbody>
<tr><td>↳</td><td>Intern</td><td>NYC</td><td><a href="https://x.example">Apply</a></td></tr>
</tbody></table>`

	jobs, err := Parse(strings.NewReader(html), 5, SubListingCarryForward)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestParse_NoTable(t *testing.T) {
	_, err := Parse(strings.NewReader("# nothing here"), 5, SubListingCarryForward)
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(readme))
	}))
	defer srv.Close()

	f := NewFetcher(Options{URL: srv.URL})
	jobs, err := f.Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestFetcher_FetchResult_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(Options{URL: srv.URL})
	res := f.FetchResult(context.Background(), 3)
	assert.True(t, res.Failed())
	assert.Empty(t, res.Listings)
	assert.True(t, strings.HasPrefix(res.Error, "Failed to fetch jobs: "))
	assert.Contains(t, res.Error, "HTTP status 500")
}

func TestFetcher_FetchResult_NoTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# empty readme"))
	}))
	defer srv.Close()

	res := NewFetcher(Options{URL: srv.URL}).FetchResult(context.Background(), 3)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "no table found")
}
