package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	testRecord := func(total float64) Record {
		merchant := "Joe's Diner"
		return Record{
			Merchant:   &merchant,
			Total:      &total,
			RawText:    "Joe's Diner\nTotal: $6.25",
			Confidence: 0.9,
		}
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveScan", func() {
		var (
			scan *Scan
			err  error
		)

		BeforeEach(func() {
			scan = &Scan{
				ID:          "test-id",
				Record:      testRecord(6.25),
				Filename:    "test-id_receipt.png",
				ContentType: "image/png",
				CreatedAt:   time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveScan(scan)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the scan to the database", func() {
				saved, getErr := db.GetScan("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("test-id"))
				Expect(saved.Record.Merchant).To(HaveValue(Equal("Joe's Diner")))
				Expect(saved.Record.Total).To(HaveValue(Equal(6.25)))
			})
		})

		When("saving over an existing id", func() {
			It("should overwrite the stored scan", func() {
				scan.Record = testRecord(9.99)
				Expect(db.SaveScan(scan)).To(Succeed())

				saved, getErr := db.GetScan("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Record.Total).To(HaveValue(Equal(9.99)))
			})
		})
	})

	Describe("GetScan", func() {
		When("the scan does not exist", func() {
			It("should return an error", func() {
				_, err := db.GetScan("missing")
				Expect(err).To(MatchError(ContainSubstring("not found")))
			})
		})
	})

	Describe("ListScans", func() {
		When("the database is empty", func() {
			It("should return no scans", func() {
				scans, err := db.ListScans()
				Expect(err).NotTo(HaveOccurred())
				Expect(scans).To(BeEmpty())
			})
		})

		When("multiple scans exist", func() {
			BeforeEach(func() {
				base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
				for i, id := range []string{"oldest", "middle", "newest"} {
					Expect(db.SaveScan(&Scan{
						ID:        id,
						Record:    testRecord(float64(i)),
						CreatedAt: base.Add(time.Duration(i) * time.Hour),
					})).To(Succeed())
				}
			})

			It("should return all scans newest first", func() {
				scans, err := db.ListScans()
				Expect(err).NotTo(HaveOccurred())
				Expect(scans).To(HaveLen(3))
				Expect(scans[0].ID).To(Equal("newest"))
				Expect(scans[1].ID).To(Equal("middle"))
				Expect(scans[2].ID).To(Equal("oldest"))
			})
		})
	})

	Describe("DeleteScan", func() {
		BeforeEach(func() {
			Expect(db.SaveScan(&Scan{ID: "test-id", Record: testRecord(1.00), CreatedAt: time.Now()})).To(Succeed())
		})

		It("should remove the scan", func() {
			Expect(db.DeleteScan("test-id")).To(Succeed())
			_, err := db.GetScan("test-id")
			Expect(err).To(HaveOccurred())
		})

		It("should not fail for an unknown id", func() {
			Expect(db.DeleteScan("missing")).To(Succeed())
		})
	})

	Describe("persistence across reopen", func() {
		It("should keep scans after closing and reopening", func() {
			Expect(db.SaveScan(&Scan{ID: "test-id", Record: testRecord(6.25), CreatedAt: time.Now()})).To(Succeed())
			Expect(db.Close()).To(Succeed())

			reopened, err := NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			saved, err := reopened.GetScan("test-id")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Record.Total).To(HaveValue(Equal(6.25)))
		})
	})
})
