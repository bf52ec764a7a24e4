package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ n int }
type pong struct{}

func TestPublishReachesSubscribersOfTheType(t *testing.T) {
	Use(New())
	t.Cleanup(func() { Use(nil) })

	var got []int
	unsubA := Subscribe(func(_ context.Context, p ping) { got = append(got, p.n) })
	unsubB := Subscribe(func(_ context.Context, p ping) { got = append(got, p.n*10) })
	Subscribe(func(_ context.Context, _ pong) { t.Fatal("pong handler called for ping") })

	Publish(context.Background(), ping{n: 1})
	assert.Equal(t, []int{1, 10}, got)

	unsubA()
	unsubA()
	Publish(context.Background(), ping{n: 2})
	assert.Equal(t, []int{1, 10, 20}, got, "only the unsubscribed handler is removed")

	unsubB()
	Publish(context.Background(), ping{n: 3})
	assert.Equal(t, []int{1, 10, 20}, got)
}

func TestPublishWithoutBus(t *testing.T) {
	Use(nil)
	unsub := Subscribe(func(context.Context, ping) { t.Fatal("no bus installed") })
	Publish(context.Background(), ping{})
	unsub()
}
