package cookies

import (
	"sync"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/scheduling"
	"github.com/gin-gonic/gin"
)

// GinJar adapts a gin request/response pair to Jar. Header starts from the
// request Cookie header and reflects records stored during the request;
// Store emits a Set-Cookie header on the response.
type GinJar struct {
	mu    sync.Mutex
	c     *gin.Context
	clock scheduling.Clock
	view  []pair
}

// NewGinJar wraps the current request.
func NewGinJar(c *gin.Context, clock scheduling.Clock) *GinJar {
	return &GinJar{
		c:     c,
		clock: clock,
		view:  splitHeader(c.Request.Header.Get("Cookie")),
	}
}

func (j *GinJar) Header() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return joinHeader(j.view)
}

func (j *GinJar) Store(raw string) error {
	record, err := ParseRecord(raw)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.c.Writer.Header().Add("Set-Cookie", raw)

	name := Encode(record.Name)
	kept := j.view[:0]
	replaced := false
	for _, p := range j.view {
		if p.name != name {
			kept = append(kept, p)
			continue
		}
		if !replaced && !record.ExpiredAt(j.clock.Now()) {
			kept = append(kept, pair{name: name, value: Encode(record.Value)})
			replaced = true
		}
	}
	if !replaced && !record.ExpiredAt(j.clock.Now()) {
		kept = append(kept, pair{name: name, value: Encode(record.Value)})
	}
	j.view = kept
	return nil
}
