package extraction

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockService is a mock implementation of Service
type mockService struct {
	result  *Result
	err     error
	started chan struct{}
	release chan struct{}
	calls   int
}

func (m *mockService) Extract(ctx context.Context, req Request) (*Result, error) {
	m.calls++
	if m.started != nil {
		close(m.started)
	}
	if m.release != nil {
		<-m.release
	}
	return m.result, m.err
}

func (m *mockService) Close() error {
	return nil
}

var _ = Describe("Client", func() {
	var (
		service *mockService
		client  *Client
	)

	BeforeEach(func() {
		service = &mockService{}
		client = NewClient(service, "mock")
	})

	It("should start idle", func() {
		Expect(client.Status().State).To(Equal(StateIdle))
	})

	When("the service succeeds", func() {
		BeforeEach(func() {
			service.result = &Result{LineItems: []RawRecord{
				{Date: "2024-01-05", Description: "Coffee", Amount: decimal.RequireFromString("4.50")},
			}}
		})

		It("should settle in done with the result", func() {
			result, err := client.Run(context.Background(), Request{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.LineItems).To(HaveLen(1))
			Expect(client.Status()).To(Equal(Status{State: StateDone, Items: 1}))
		})
	})

	When("the service fails", func() {
		BeforeEach(func() {
			service.err = &TransportError{Err: errors.New("connection reset by peer")}
		})

		It("should settle in error with the verbatim message", func() {
			_, err := client.Run(context.Background(), Request{})
			Expect(err).To(HaveOccurred())
			Expect(client.Status()).To(Equal(Status{State: StateError, Message: "connection reset by peer"}))
		})

		It("should return to idle on reset", func() {
			_, _ = client.Run(context.Background(), Request{})
			client.Reset()
			Expect(client.Status()).To(Equal(Status{State: StateIdle}))
		})
	})

	When("the service returns an empty result", func() {
		BeforeEach(func() {
			service.result = &Result{}
		})

		It("should report a schema violation", func() {
			_, err := client.Run(context.Background(), Request{})
			Expect(err).To(MatchError(NoLineItemsMessage))
			Expect(client.Status().State).To(Equal(StateError))
		})
	})

	When("an extraction is already in flight", func() {
		var done chan error

		BeforeEach(func() {
			service.started = make(chan struct{})
			service.release = make(chan struct{})
			service.result = &Result{LineItems: []RawRecord{{Date: "d", Description: "x", Amount: decimal.NewFromInt(1)}}}

			done = make(chan error, 1)
			go func() {
				_, err := client.Run(context.Background(), Request{})
				done <- err
			}()
			Eventually(service.started).Should(BeClosed())
		})

		It("should refuse a second run without touching state", func() {
			_, err := client.Run(context.Background(), Request{})
			Expect(err).To(MatchError(ErrExtractionInFlight))
			Expect(client.Status().State).To(Equal(StateProcessing))
			Expect(service.calls).To(Equal(1))

			close(service.release)
			Eventually(done).Should(Receive(BeNil()))
			Expect(client.Status().State).To(Equal(StateDone))
		})

		It("should ignore reset while processing", func() {
			client.Reset()
			Expect(client.Status().State).To(Equal(StateProcessing))
			close(service.release)
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
