package storage_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/jrwilson/substrate/storage"
)

type status struct {
	State string `json:"state"`
}

var _ = Describe("storage / InmemoryStore", func() {
	var store *storage.InmemoryStore

	BeforeEach(func() {
		store = storage.NewInmemoryStore(nil)
	})

	AfterEach(func() {
		store.Close()
	})

	Describe("Close()", func() {
		It("does not panic when closed twice", func() {
			Expect(func() { store.Close() }).NotTo(Panic())
			Expect(func() { store.Close() }).NotTo(Panic())
		})

		It("closes update channels", func() {
			updateChan := store.ListenToUpdates()
			Expect(store.Close()).To(Succeed())
			Eventually(updateChan).Should(BeClosed())
		})

		It("refuses writes once closed", func() {
			Expect(store.Close()).To(Succeed())
			Expect(store.Put(context.Background(), "s-1", status{"NORMAL"})).To(MatchError(storage.ErrClosed))
		})
	})

	It("an empty store snapshots as {}", func() {
		value, err := store.Snapshot()
		Expect(err).To(Succeed())
		Expect(string(value)).To(Equal(`{}`))
	})

	Describe("Put() / Get()", func() {
		It("can read a session that is written", func() {
			Expect(store.Put(context.Background(), "s-1", status{"NORMAL"})).To(Succeed())
			Expect(store.Get(context.Background(), "s-1")).To(MatchJSON(`{"state":"NORMAL"}`))

			value, err := store.Snapshot()
			Expect(err).To(Succeed())
			Expect(value).To(MatchJSON(`{"s-1":{"state":"NORMAL"}}`))
		})

		It("keeps IDs that look like paths intact", func() {
			Expect(store.Put(context.Background(), "127.0.0.1:5900", status{"RECV_VERSION"})).To(Succeed())
			Expect(store.Get(context.Background(), "127.0.0.1:5900")).To(MatchJSON(`{"state":"RECV_VERSION"}`))

			value, _ := store.Snapshot()
			Expect(value).To(MatchJSON(`{"127.0.0.1:5900":{"state":"RECV_VERSION"}}`))
		})

		It("returns ErrNotFound for unknown sessions", func() {
			_, err := store.Get(context.Background(), "missing")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("sends on the update channel when sessions change", func() {
			updateChan := store.ListenToUpdates()
			Expect(store.Put(context.Background(), "s-1", status{"NORMAL"})).To(Succeed())

			update, ok := <-updateChan
			Expect(ok).To(BeTrue())
			Expect(update).To(Equal(&storage.Update{
				ID:    "s-1",
				Value: []byte(`{"state":"NORMAL"}`),
			}))
		})
	})

	Describe("Delete()", func() {
		It("removes the session and tells listeners", func() {
			Expect(store.Put(context.Background(), "s-1", status{"NORMAL"})).To(Succeed())

			updateChan := store.ListenToUpdates()
			Expect(store.Delete(context.Background(), "s-1")).To(Succeed())

			Expect(<-updateChan).To(Equal(&storage.Update{ID: "s-1"}))

			_, err := store.Get(context.Background(), "s-1")
			Expect(err).To(MatchError(storage.ErrNotFound))
		})

		It("returns ErrNotFound for unknown sessions", func() {
			Expect(store.Delete(context.Background(), "missing")).To(MatchError(storage.ErrNotFound))
		})
	})
})
