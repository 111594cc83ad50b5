package main

import (
	"context"
	"os"
	"time"

	"github.com/reactormc/memcache/memcache"
)

func main() {
	_ = os.Setenv("MEMCACHED_SERVERS", "localhost:11211")

	c, err := memcache.InitFromEnv(memcache.WithDisableLogger())
	mustInit(err)
	defer c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	setFuture, err := c.Set("foo", 10, []byte("bar"))
	mustInit(err)
	_, err = setFuture.Get(ctx)
	mustInit(err)

	getFuture, err := c.Get("foo")
	mustInit(err)
	item, err := getFuture.Get(ctx)
	mustInit(err)
	_ = item

	delFuture, err := c.Delete("foo")
	mustInit(err)
	_, err = delFuture.Get(ctx)
	mustInit(err)

	incrFuture, err := c.Incr("counter", 1, 1, 0)
	mustInit(err)
	_, err = incrFuture.Get(ctx)
	mustInit(err)

	items := map[string][]byte{
		"foo":    []byte("bar"),
		"gopher": []byte("golang"),
		"answer": []byte("42"),
	}
	for k, v := range items {
		f, err := c.Add(k, 0, v)
		mustInit(err)
		_, err = f.Get(ctx)
		mustInit(err)
	}

	bulkFuture, err := c.GetBulk(keys(items))
	mustInit(err)
	_, err = bulkFuture.Get(ctx)
	mustInit(err)

	flushFuture, err := c.Flush(0)
	mustInit(err)
	_, err = flushFuture.Get(ctx)
	mustInit(err)
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func mustInit(e error) {
	if e != nil {
		panic(e)
	}
}
