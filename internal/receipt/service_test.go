package receipt

import (
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kmazur/paragon/internal/prompt"
)

type mockExtractor struct {
	record *Record
	err    error
	raw    string
}

func (m *mockExtractor) Run(raw string) (*Record, error) {
	m.raw = raw
	return m.record, m.err
}

type mockDB struct {
	records      map[string]*Record
	canonical    map[string]string
	savedAliases map[string]string
	saveErr      error
	lookupErr    error
}

func newMockDB() *mockDB {
	return &mockDB{
		records:      make(map[string]*Record),
		canonical:    make(map[string]string),
		savedAliases: make(map[string]string),
	}
}

func (m *mockDB) SaveRecord(record *Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[record.ID] = record
	return nil
}

func (m *mockDB) GetRecord(id string) (*Record, error) {
	record, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record not found: %s", id)
	}
	return record, nil
}

func (m *mockDB) ListRecords() ([]*Record, error) {
	records := make([]*Record, 0, len(m.records))
	for _, record := range m.records {
		records = append(records, record)
	}
	return records, nil
}

func (m *mockDB) DeleteRecord(id string) error {
	delete(m.records, id)
	return nil
}

func (m *mockDB) CanonicalName(name string) (string, bool, error) {
	if m.lookupErr != nil {
		return "", false, m.lookupErr
	}
	canonical, ok := m.canonical[name]
	return canonical, ok, nil
}

func (m *mockDB) SaveCanonicalName(alias, canonical string) error {
	m.savedAliases[alias] = canonical
	m.canonical[canonical] = canonical
	if alias != canonical {
		m.canonical[alias] = canonical
	}
	return nil
}

func (m *mockDB) Close() error { return nil }

type mockStorage struct {
	saved   map[string][]byte
	deleted []string
	saveErr error
	getErr  error
}

func newMockStorage() *mockStorage {
	return &mockStorage{saved: make(map[string][]byte)}
}

func (m *mockStorage) Save(filename string, data []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockStorage) Get(path string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.saved[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return data, nil
}

func (m *mockStorage) Delete(path string) error {
	m.deleted = append(m.deleted, path)
	delete(m.saved, path)
	return nil
}

type fixedIDGenerator struct{ id string }

func (g fixedIDGenerator) Generate() string { return g.id }

type fixedTimeSource struct{ t time.Time }

func (s fixedTimeSource) Now() time.Time { return s.t }

var _ = Describe("Service", func() {
	var (
		subject   *Service
		db        *mockDB
		storage   *mockStorage
		extractor *mockExtractor
		script    *prompt.Script
		now       time.Time
	)

	extracted := func() *Record {
		return &Record{
			Status:   StatusExtracted,
			ShopName: "Biedronka",
			Items: []*Item{
				{
					Name:       "Mleko UHT 3,2%",
					Qty:        amount("1"),
					UnitPrice:  amount("2.99"),
					TotalPrice: amount("2.99"),
					FinalPrice: amount("2.99"),
				},
			},
			TotalSum:   amount("2.99"),
			TotalKnown: true,
		}
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		extractor = &mockExtractor{record: extracted()}
		script = nil
		now = time.Date(2024, 5, 11, 14, 2, 0, 0, time.UTC)
	})

	JustBeforeEach(func() {
		var src prompt.Source
		if script != nil {
			src = script
		}
		subject = NewServiceWithDeps(db, storage, extractor, src, 3,
			fixedIDGenerator{id: "test-id"}, fixedTimeSource{t: now})
	})

	Describe("Process", func() {
		When("the receipt is clean", func() {
			It("extracts, reconciles and persists the record", func() {
				record, err := subject.Process("receipt.txt", []byte("raw text"))

				Expect(err).NotTo(HaveOccurred())
				Expect(record.ID).To(Equal("test-id"))
				Expect(record.CreatedAt).To(Equal(now))
				Expect(record.Status).To(Equal(StatusReconciled))
				Expect(extractor.raw).To(Equal("raw text"))
				Expect(db.records).To(HaveKey("test-id"))
			})

			It("keeps the raw content under the record ID", func() {
				record, err := subject.Process("receipt.txt", []byte("raw text"))

				Expect(err).NotTo(HaveOccurred())
				Expect(record.SourcePath).To(Equal("test-id_receipt.txt"))
				Expect(storage.saved).To(HaveKey("test-id_receipt.txt"))
				Expect(storage.saved["test-id_receipt.txt"]).To(Equal([]byte("raw text")))
			})

			It("sanitizes the filename", func() {
				record, err := subject.Process("We!rd Name@.txt", []byte("raw text"))

				Expect(err).NotTo(HaveOccurred())
				Expect(record.SourcePath).To(Equal("test-id_Werd Name.txt"))
			})
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				extractor.record = nil
				extractor.err = errors.New("malformed discount block")
			})

			It("returns the error without touching storage or the database", func() {
				_, err := subject.Process("receipt.txt", []byte("raw text"))

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("extracting receipt"))
				Expect(storage.saved).To(BeEmpty())
				Expect(db.records).To(BeEmpty())
			})
		})

		When("storing the raw content fails", func() {
			BeforeEach(func() {
				storage.saveErr = errors.New("disk full")
			})

			It("returns the error without saving the record", func() {
				_, err := subject.Process("receipt.txt", []byte("raw text"))

				Expect(err).To(HaveOccurred())
				Expect(db.records).To(BeEmpty())
			})
		})

		When("saving the record fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("database closed")
			})

			It("removes the stored raw content again", func() {
				_, err := subject.Process("receipt.txt", []byte("raw text"))

				Expect(err).To(HaveOccurred())
				Expect(storage.deleted).To(ConsistOf("test-id_receipt.txt"))
				Expect(storage.saved).To(BeEmpty())
			})
		})

		When("the record cannot be fully reconciled", func() {
			BeforeEach(func() {
				record := extracted()
				record.TotalSum = amount("9.97")
				extractor.record = record
			})

			It("persists it as accepted with a discrepancy", func() {
				record, err := subject.Process("receipt.txt", []byte("raw text"))

				Expect(err).NotTo(HaveOccurred())
				Expect(record.Status).To(Equal(StatusAcceptedWithDiscrepancy))
				Expect(record.Discrepancy.String()).To(Equal("6.98"))
				Expect(db.records).To(HaveKey("test-id"))
			})
		})

		When("an item name has a stored canonical form", func() {
			BeforeEach(func() {
				db.canonical["Mleko UHT 3,2%"] = "Mleko"
			})

			It("substitutes it before persisting", func() {
				record, err := subject.Process("receipt.txt", []byte("raw text"))

				Expect(err).NotTo(HaveOccurred())
				Expect(record.Items[0].Name).To(Equal("Mleko"))
			})
		})

		When("an item name is unknown in batch mode", func() {
			It("keeps the raw name and stores nothing", func() {
				record, err := subject.Process("receipt.txt", []byte("raw text"))

				Expect(err).NotTo(HaveOccurred())
				Expect(record.Items[0].Name).To(Equal("Mleko UHT 3,2%"))
				Expect(db.savedAliases).To(BeEmpty())
			})
		})

		When("an item name is unknown in interactive mode", func() {
			BeforeEach(func() {
				script = prompt.NewScript("Mleko")
			})

			It("stores the entered canonical name and substitutes it", func() {
				record, err := subject.Process("receipt.txt", []byte("raw text"))

				Expect(err).NotTo(HaveOccurred())
				Expect(record.Items[0].Name).To(Equal("Mleko"))
				Expect(db.savedAliases).To(HaveKeyWithValue("Mleko UHT 3,2%", "Mleko"))
			})
		})

		When("the operator keeps the raw name", func() {
			BeforeEach(func() {
				script = prompt.NewScript("")
			})

			It("stores the raw name as its own canonical form", func() {
				record, err := subject.Process("receipt.txt", []byte("raw text"))

				Expect(err).NotTo(HaveOccurred())
				Expect(record.Items[0].Name).To(Equal("Mleko UHT 3,2%"))
				Expect(db.savedAliases).To(HaveKeyWithValue("Mleko UHT 3,2%", "Mleko UHT 3,2%"))
			})
		})

		When("the name lookup fails", func() {
			BeforeEach(func() {
				db.lookupErr = errors.New("database closed")
			})

			It("removes the stored raw content again", func() {
				_, err := subject.Process("receipt.txt", []byte("raw text"))

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("normalizing item names"))
				Expect(storage.deleted).To(ConsistOf("test-id_receipt.txt"))
			})
		})
	})

	Describe("DeleteRecord", func() {
		It("removes the record and its raw content", func() {
			_, err := subject.Process("receipt.txt", []byte("raw text"))
			Expect(err).NotTo(HaveOccurred())

			Expect(subject.DeleteRecord("test-id")).To(Succeed())

			Expect(db.records).To(BeEmpty())
			Expect(storage.deleted).To(ConsistOf("test-id_receipt.txt"))
		})

		It("returns an error for an unknown ID", func() {
			Expect(subject.DeleteRecord("missing")).NotTo(Succeed())
		})
	})

	Describe("GetRawContent", func() {
		It("returns the stored OCR text", func() {
			_, err := subject.Process("receipt.txt", []byte("raw text"))
			Expect(err).NotTo(HaveOccurred())

			data, err := subject.GetRawContent("test-id")

			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("raw text"))
		})
	})

	Describe("PriceHistory", func() {
		BeforeEach(func() {
			db.records["r2"] = &Record{
				ID:           "r2",
				ShopName:     "Żabka",
				ShoppingDate: "2024-06-01",
				Items: []*Item{
					{Name: "Mleko", UnitPrice: amount("3.19")},
				},
			}
			db.records["r1"] = &Record{
				ID:           "r1",
				ShopName:     "Biedronka",
				ShoppingDate: "2024-05-11",
				Items: []*Item{
					{Name: "Mleko", UnitPrice: amount("2.99")},
					{Name: "Chleb", UnitPrice: amount("2.49")},
				},
			}
		})

		It("returns the observations for one name ordered by date", func() {
			points, err := subject.PriceHistory("Mleko")

			Expect(err).NotTo(HaveOccurred())
			Expect(points).To(HaveLen(2))
			Expect(points[0].Date).To(Equal("2024-05-11"))
			Expect(points[0].UnitPrice.String()).To(Equal("2.99"))
			Expect(points[1].Date).To(Equal("2024-06-01"))
			Expect(points[1].ShopName).To(Equal("Żabka"))
		})

		It("returns nothing for an unseen name", func() {
			points, err := subject.PriceHistory("Woda")

			Expect(err).NotTo(HaveOccurred())
			Expect(points).To(BeEmpty())
		})
	})
})
