package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/sethshoultes/invoice-generator/internal/export"
	"github.com/sethshoultes/invoice-generator/internal/extraction"
	"github.com/sethshoultes/invoice-generator/internal/invoice"
)

var _ = Describe("Server", func() {
	var (
		service *mockService
		cfg     Config
		server  *Server
		gs      *ghttp.Server
		api     client
	)

	BeforeEach(func() {
		service = newMockService()
		cfg = Config{
			Service:  service,
			Provider: "mock",
			Issuer:   invoice.Issuer{Name: "Acme Services", PayableTo: "Jane Doe"},
			Renderer: fakeRenderer{},
			Clock:    fixedClock{},
		}
	})

	JustBeforeEach(func() {
		server = NewServerWithMux(cfg, http.NewServeMux())
		gs = serve(server.ServeHTTP)
		api = client{base: gs.URL()}
	})

	AfterEach(func() {
		if gs != nil {
			gs.Close()
		}
	})

	create := func(mode string) sessionJSON {
		var s sessionJSON
		resp := api.json(http.MethodPost, "/api/sessions", map[string]string{"mode": mode})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		decode(resp, &s)
		return s
	}

	Describe("POST /api/sessions", func() {
		It("should create a session at the upload step", func() {
			s := create("amount")
			Expect(s.ID).NotTo(BeEmpty())
			Expect(s.Step).To(Equal(1))
			Expect(s.Mode).To(Equal("amount"))
			Expect(s.Metadata.IssuerName).To(Equal("Acme Services"))
		})

		It("should default to quantity mode", func() {
			resp := api.do(http.MethodPost, "/api/sessions", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			var s sessionJSON
			decode(resp, &s)
			Expect(s.Mode).To(Equal("quantity"))
		})

		It("should reject an unknown mode", func() {
			resp := api.json(http.MethodPost, "/api/sessions", map[string]string{"mode": "hourly"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("GET /api/sessions/{id}", func() {
		It("should return 404 for an unknown session", func() {
			resp := api.do(http.MethodGet, "/api/sessions/nope", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(readBody(resp)).To(ContainSubstring("Session not found"))
		})

		It("should be gone after DELETE", func() {
			s := create("amount")
			resp := api.do(http.MethodDelete, "/api/sessions/"+s.ID, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()

			resp = api.do(http.MethodGet, "/api/sessions/"+s.ID, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("POST /api/sessions/{id}/upload", func() {
		var s sessionJSON

		JustBeforeEach(func() {
			s = create("amount")
		})

		It("should extract the items and advance", func() {
			resp := api.upload("/api/sessions/"+s.ID+"/upload", "statement.png", pngData)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var out sessionJSON
			decode(resp, &out)
			Expect(out.Step).To(Equal(2))
			Expect(out.Items).To(HaveLen(2))
			Expect(out.Items[0].Date).To(Equal("2024-01-05"))
			Expect(out.Totals.Subtotal).To(Equal("16.5"))
			Expect(out.Extraction.State).To(Equal("done"))
		})

		It("should reject unsupported files", func() {
			resp := api.upload("/api/sessions/"+s.ID+"/upload", "notes.txt", []byte("just some text"))
			Expect(resp.StatusCode).To(Equal(http.StatusUnsupportedMediaType))
			resp.Body.Close()
		})

		It("should require a file", func() {
			resp := api.do(http.MethodPost, "/api/sessions/"+s.ID+"/upload", strings.NewReader(""), "multipart/form-data; boundary=x")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})

		When("the service returns no items", func() {
			BeforeEach(func() {
				service.result = nil
				service.err = &extraction.SchemaViolationError{Cause: errors.New("empty")}
			})

			It("should report the violation", func() {
				resp := api.upload("/api/sessions/"+s.ID+"/upload", "statement.png", pngData)
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				Expect(readBody(resp)).To(ContainSubstring("No line items extracted"))
			})
		})

		When("the service reports an error", func() {
			BeforeEach(func() {
				service.result = nil
				service.err = &extraction.ServiceReportedError{Message: "Overloaded"}
			})

			It("should surface the message as a bad gateway", func() {
				resp := api.upload("/api/sessions/"+s.ID+"/upload", "statement.png", pngData)
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				Expect(readBody(resp)).To(ContainSubstring("Overloaded"))
			})
		})
	})

	Describe("editing", func() {
		var s sessionJSON

		JustBeforeEach(func() {
			s = create("quantity")
			resp := api.do(http.MethodPost, "/api/sessions/"+s.ID+"/blank", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()
		})

		It("should add and edit items", func() {
			var added sessionJSON
			resp := api.do(http.MethodPost, "/api/sessions/"+s.ID+"/items", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			decode(resp, &added)
			Expect(added.Item).NotTo(BeNil())
			Expect(added.Items).To(HaveLen(1))
			Expect(added.Items[0].Date).To(Equal("03/09/2024"))

			var edited sessionJSON
			resp = api.json(http.MethodPatch, "/api/sessions/"+s.ID+"/items/"+added.Item.ID, map[string]string{"field": "unit_price", "value": "19.99"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			decode(resp, &edited)
			Expect(edited.Totals.Subtotal).To(Equal("19.99"))
			Expect(*edited.Totals.Total).To(Equal("19.99"))
		})

		It("should store free text verbatim", func() {
			var added sessionJSON
			decode(api.do(http.MethodPost, "/api/sessions/"+s.ID+"/items", nil, ""), &added)

			var edited sessionJSON
			resp := api.json(http.MethodPatch, "/api/sessions/"+s.ID+"/items/"+added.Item.ID, map[string]string{"field": "description", "value": "Cable <HDMI> 2m & adapter &lt;x&gt;"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			decode(resp, &edited)
			Expect(edited.Items[0].Description).To(Equal("Cable <HDMI> 2m & adapter &lt;x&gt;"))
		})

		It("should escape free text in the print preview", func() {
			var added sessionJSON
			decode(api.do(http.MethodPost, "/api/sessions/"+s.ID+"/items", nil, ""), &added)
			readBody(api.json(http.MethodPatch, "/api/sessions/"+s.ID+"/items/"+added.Item.ID, map[string]string{"field": "description", "value": "Cable <HDMI> 2m"}))
			readBody(api.json(http.MethodPatch, "/api/sessions/"+s.ID+"/metadata", map[string]string{"field": "client_name", "value": "<script>alert(1)</script>"}))

			resp := api.do(http.MethodGet, "/api/sessions/"+s.ID+"/preview", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/html"))
			page := readBody(resp)
			Expect(page).To(ContainSubstring("Cable &lt;HDMI&gt; 2m"))
			Expect(page).To(ContainSubstring("&lt;script&gt;"))
			Expect(page).NotTo(ContainSubstring("<script>"))
		})

		It("should reject unknown fields", func() {
			resp := api.json(http.MethodPatch, "/api/sessions/"+s.ID+"/metadata", map[string]string{"field": "colour", "value": "red"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})

		It("should update metadata", func() {
			var out sessionJSON
			resp := api.json(http.MethodPatch, "/api/sessions/"+s.ID+"/metadata", map[string]string{"field": "client_name", "value": "Globex"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			decode(resp, &out)
			Expect(out.Metadata.ClientName).To(Equal("Globex"))
		})

		It("should delete items", func() {
			var added sessionJSON
			decode(api.do(http.MethodPost, "/api/sessions/"+s.ID+"/items", nil, ""), &added)

			var out sessionJSON
			decode(api.do(http.MethodDelete, "/api/sessions/"+s.ID+"/items/"+added.Item.ID, nil, ""), &out)
			Expect(out.Items).To(BeEmpty())
		})
	})

	Describe("navigation", func() {
		It("should refuse Next at Upload", func() {
			s := create("amount")
			resp := api.do(http.MethodPost, "/api/sessions/"+s.ID+"/next", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			resp.Body.Close()
		})

		It("should jump and go back", func() {
			s := create("amount")
			var out sessionJSON
			decode(api.json(http.MethodPost, "/api/sessions/"+s.ID+"/jump", map[string]int{"step": 4}), &out)
			Expect(out.StepName).To(Equal("preview"))
			Expect(out.CanExportPDF).To(BeTrue())

			decode(api.do(http.MethodPost, "/api/sessions/"+s.ID+"/back", nil, ""), &out)
			Expect(out.StepName).To(Equal("details"))
		})

		It("should reject an invalid jump", func() {
			s := create("amount")
			resp := api.json(http.MethodPost, "/api/sessions/"+s.ID+"/jump", map[string]int{"step": 7})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("exports", func() {
		It("should gate the PDF on the preview step", func() {
			s := create("amount")
			resp := api.upload("/api/sessions/"+s.ID+"/upload", "statement.png", pngData)
			resp.Body.Close()

			resp = api.do(http.MethodGet, "/api/sessions/"+s.ID+"/export.pdf", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			resp.Body.Close()
		})

		It("should return the document model", func() {
			s := create("amount")
			var doc export.Document
			resp := api.do(http.MethodGet, "/api/sessions/"+s.ID+"/document", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			decode(resp, &doc)
			Expect(doc.Title).To(Equal("Invoice"))
			Expect(doc.Header.Name).To(Equal("Acme Services"))
		})

		When("a mirror directory is configured", func() {
			var dir string

			BeforeEach(func() {
				dir = GinkgoT().TempDir()
				mirror, err := export.NewLocalSink(dir)
				Expect(err).NotTo(HaveOccurred())
				cfg.Mirror = mirror
			})

			It("should copy the export there", func() {
				s := create("amount")
				readBody(api.upload("/api/sessions/"+s.ID+"/upload", "statement.png", pngData))

				resp := api.do(http.MethodGet, "/api/sessions/"+s.ID+"/export.csv", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				body := readBody(resp)

				copied, err := os.ReadFile(filepath.Join(dir, "invoice-items-2024-03-09.csv"))
				Expect(err).NotTo(HaveOccurred())
				Expect(string(copied)).To(Equal(body))
			})
		})

		It("should report a missing archive", func() {
			resp := api.do(http.MethodGet, "/api/exports", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("extraction timeout", func() {
		var upstream *ghttp.Server

		BeforeEach(func() {
			upstream = ghttp.NewServer()
			upstream.AppendHandlers(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(500 * time.Millisecond)
				w.WriteHeader(http.StatusOK)
			})
			anthropic, err := extraction.NewAnthropic(extraction.AnthropicConfig{APIKey: "test-key", BaseURL: upstream.URL()})
			Expect(err).NotTo(HaveOccurred())
			cfg.Service = anthropic
			cfg.ExtractTimeout = 50 * time.Millisecond
		})

		AfterEach(func() {
			upstream.Close()
		})

		It("should report a gateway timeout", func() {
			s := create("amount")
			resp := api.upload("/api/sessions/"+s.ID+"/upload", "statement.png", pngData)
			Expect(resp.StatusCode).To(Equal(http.StatusGatewayTimeout))
			resp.Body.Close()

			var out sessionJSON
			decode(api.do(http.MethodGet, "/api/sessions/"+s.ID, nil, ""), &out)
			Expect(out.StepName).To(Equal("upload"))
			Expect(out.Extraction.State).To(Equal("error"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			cfg.BasicAuth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should reject missing credentials", func() {
			resp := api.do(http.MethodPost, "/api/sessions", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			resp.Body.Close()
		})

		It("should accept valid credentials", func() {
			api.auth = [2]string{"admin", "secret"}
			resp := api.do(http.MethodPost, "/api/sessions", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			resp.Body.Close()
		})

		It("should answer preflight requests without credentials", func() {
			resp := api.do(http.MethodOptions, "/api/sessions", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PATCH"))
			resp.Body.Close()
		})
	})

	Describe("GET /metrics", func() {
		It("should serve prometheus metrics", func() {
			resp := api.do(http.MethodGet, "/metrics", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(ContainSubstring("go_goroutines"))
		})
	})

	Describe("end to end with an export archive", func() {
		var archive *export.BoltSink

		BeforeEach(func() {
			var err error
			archive, err = export.NewBoltSink(filepath.Join(GinkgoT().TempDir(), "exports.db"))
			Expect(err).NotTo(HaveOccurred())
			cfg.Archive = archive
		})

		AfterEach(func() {
			archive.Close()
		})

		It("should upload, edit, preview, export and archive", func() {
			s := create("quantity")

			var out sessionJSON
			decode(api.upload("/api/sessions/"+s.ID+"/upload", "statement.png", pngData), &out)
			Expect(out.StepName).To(Equal("items"))
			Expect(out.Items[0].Date).To(Equal("01/05/2024"))

			resp := api.do(http.MethodGet, "/api/sessions/"+s.ID+"/export.csv", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("invoice-items-2024-03-09.csv"))
			Expect(readBody(resp)).To(Equal("Date,Description,Amount\n" +
				"01/05/2024,\"Coffee \"\"Shop\"\"\",4.50\n" +
				"01/06/2024,\"Parking\",12.00\n" +
				",SUBTOTAL,16.50"))

			decode(api.do(http.MethodPost, "/api/sessions/"+s.ID+"/next", nil, ""), &out)
			Expect(out.StepName).To(Equal("details"))
			decode(api.json(http.MethodPatch, "/api/sessions/"+s.ID+"/metadata", map[string]string{"field": "invoice_number", "value": "42"}), &out)
			decode(api.json(http.MethodPatch, "/api/sessions/"+s.ID+"/metadata", map[string]string{"field": "adjustments", "value": "-1.50"}), &out)
			Expect(*out.Totals.Total).To(Equal("15"))
			decode(api.do(http.MethodPost, "/api/sessions/"+s.ID+"/next", nil, ""), &out)
			Expect(out.StepName).To(Equal("preview"))

			resp = api.do(http.MethodGet, "/api/sessions/"+s.ID+"/export.pdf", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal(export.ContentTypePDF))
			Expect(readBody(resp)).To(HavePrefix("%PDF"))

			resp = api.do(http.MethodGet, "/api/sessions/"+s.ID+"/export.xlsx", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()

			var entries []export.Entry
			decode(api.do(http.MethodGet, "/api/exports", nil, ""), &entries)
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name)
			}
			Expect(names).To(ConsistOf("invoice-items-2024-03-09.csv", "invoice-42.pdf", "invoice-items-2024-03-09.xlsx"))

			resp = api.do(http.MethodGet, "/api/exports/invoice-42.pdf", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(Equal("%PDF-1.3 Invoice"))

			resp = api.do(http.MethodGet, "/api/exports/missing.pdf", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()

			decode(api.do(http.MethodPost, "/api/sessions/"+s.ID+"/reset", nil, ""), &out)
			Expect(out.StepName).To(Equal("upload"))
			Expect(out.Items).To(BeEmpty())
		})
	})
})
