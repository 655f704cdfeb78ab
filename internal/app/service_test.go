package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/debtlens/internal/adapters/repository"
	service "github.com/okian/debtlens/internal/app"
	"github.com/okian/debtlens/internal/domain/aggregation"
	"github.com/okian/debtlens/internal/domain/normalize"
	"github.com/okian/debtlens/internal/domain/timeseries"
	"github.com/okian/debtlens/internal/domain/view"
	"github.com/okian/debtlens/pkg/logger"
	"github.com/okian/debtlens/pkg/metrics"
)

func init() {
	// Initialize logging for tests
	if err := logger.InitWith(os.Stdout, logger.FormatText); err != nil {
		panic(err)
	}
}

const metricCol = "Interest payments on external debt (% of GNI)"

type memSource struct {
	mu   sync.Mutex
	rows []normalize.Row
	err  error
}

func (m *memSource) Rows(_ context.Context) ([]normalize.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]normalize.Row, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *memSource) set(rows []normalize.Row, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows, m.err = rows, err
}

func row(continent, subregion, country string, year, rating, metric any) normalize.Row {
	return normalize.Row{
		"Year":                  year,
		"CONTINENT":             continent,
		"SUBREGION":             subregion,
		"Country Name":          country,
		"Average Credit Rating": rating,
		metricCol:               metric,
	}
}

func panel() []normalize.Row {
	return []normalize.Row{
		row("Africa", "Eastern Africa", "Kenya", 2022, 11.4, 2.0),
		row("Africa", "Eastern Africa", "Kenya", 2021, 11.0, 1.5),
		row("Africa", "Western Africa", "Ghana", 2022, 7.0, 3.0),
		row("Asia", "Southern Asia", "India", 2022, 15.6, 1.0),
		row("Europe", "Western Europe", "France", 2022, 21.0, 0.5),
		row("Europe", "Western Europe", "France", "n/a", 21.0, 0.4),
	}
}

func bucketMean(g aggregation.GroupResult, label string) (float64, bool) {
	for _, b := range g.Buckets {
		if b.Label == label {
			return b.Mean.Get()
		}
	}
	return 0, false
}

// counterValue reads a counter from the served metrics registry.
func counterValue(name string) float64 {
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			st := svc.ViewState()
			So(st.Mode, ShouldEqual, view.ModeGroupComparison)
			So(st.Groups, ShouldResemble, []string{"Africa"})
			So(st.Year, ShouldEqual, 2022)
		})

		Convey("Then queries should fail before a load", func() {
			_, err := svc.Selections(context.Background())
			So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)
		})

		Convey("Then starting without a source should fail", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrNoSource), ShouldBeTrue)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service over an in-memory panel", t, func() {
		ctx := context.Background()
		src := &memSource{rows: panel()}
		svc := service.New(service.WithSource(src))
		defer svc.Stop()

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["records"], ShouldEqual, 6)
				So(stats["warnings"], ShouldEqual, 1)
				So(stats["snapshots"], ShouldEqual, uint64(1))
			})

			Convey("Then the selections should be sorted and unique", func() {
				keys, err := svc.Selections(ctx)
				So(err, ShouldBeNil)
				So(keys, ShouldResemble, []string{
					"Africa - Ghana",
					"Africa - Kenya",
					"Asia - India",
					"Europe - France",
				})
			})

			Convey("Then starting again should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
				So(svc.GetStats()["snapshots"], ShouldEqual, uint64(1))
			})
		})
	})

	Convey("Given a service over a CSV file", t, func() {
		path := filepath.Join(t.TempDir(), "panel.csv")
		content := "Year,CONTINENT,SUBREGION,Country Name,Average Credit Rating," + `"` + metricCol + `"` + "\n" +
			"2022,Africa,Eastern Africa,Kenya,11.4,2.0\n"
		So(os.WriteFile(path, []byte(content), 0o600), ShouldBeNil)
		svc := service.New(service.WithDataPath(path, ""))

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())

			Convey("Then the file should be loaded", func() {
				So(err, ShouldBeNil)
				keys, _ := svc.Selections(context.Background())
				So(keys, ShouldResemble, []string{"Africa - Kenya"})
			})
		})
	})
}

func TestService_Aggregate(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithSource(&memSource{rows: panel()}))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When Africa and its complement are compared", func() {
			res, err := svc.Aggregate(ctx, 2022, []string{"Africa", "Non-Africa"})

			Convey("Then each group should be bucketed by rounded rating", func() {
				So(err, ShouldBeNil)
				So(res.Order, ShouldResemble, []string{"Africa", "Non-Africa"})

				africa := res.Groups["Africa"]
				m, ok := bucketMean(africa, "BB+")
				So(ok, ShouldBeTrue)
				So(m, ShouldAlmostEqual, 2.0)
				m, ok = bucketMean(africa, "B")
				So(ok, ShouldBeTrue)
				So(m, ShouldAlmostEqual, 3.0)
				So(africa.Summary.OrElse(0), ShouldAlmostEqual, 2.5)

				rest := res.Groups["Non-Africa"]
				m, ok = bucketMean(rest, "A")
				So(ok, ShouldBeTrue)
				So(m, ShouldAlmostEqual, 1.0)
				So(rest.Summary.OrElse(0), ShouldAlmostEqual, 0.75)
			})
		})

		Convey("When an unknown group is requested", func() {
			res, err := svc.Aggregate(ctx, 2022, []string{"Oceania"})

			Convey("Then it should be present but empty", func() {
				So(err, ShouldBeNil)
				So(res.Groups["Oceania"].Empty(), ShouldBeTrue)
			})
		})

		Convey("When a broken virtual group is requested", func() {
			broken := service.New(
				service.WithSource(&memSource{rows: panel()}),
				service.WithVirtualGroups(aggregation.Definitions{"Loop": {Base: "Loop"}}),
			)
			So(broken.Start(ctx), ShouldBeNil)
			res, err := broken.Aggregate(ctx, 2022, []string{"Loop", "Asia"})

			Convey("Then only that group should fail", func() {
				So(err, ShouldBeNil)
				So(errors.Is(res.Errors["Loop"], aggregation.ErrInvalidVirtualGroup), ShouldBeTrue)
				So(res.Groups["Asia"].Empty(), ShouldBeFalse)
			})
		})
	})
}

func TestService_Series(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithSource(&memSource{rows: panel()}))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When a known key is extracted", func() {
			s, err := svc.Series(ctx, "Africa - Kenya", 2012, 2022)

			Convey("Then points should be ordered by year", func() {
				So(err, ShouldBeNil)
				So(s.Points, ShouldResemble, []timeseries.Point{{Year: 2021, Value: 1.5}, {Year: 2022, Value: 2.0}})
			})
		})

		Convey("When the window is inverted", func() {
			_, err := svc.Series(ctx, "Africa - Kenya", 2022, 2012)
			So(errors.Is(err, timeseries.ErrInvalidWindow), ShouldBeTrue)
		})

		Convey("When the key is unknown", func() {
			_, err := svc.Series(ctx, "Africa - Atlantis", 2012, 2022)
			So(errors.Is(err, view.ErrUnknownSelectionKey), ShouldBeTrue)
		})

		Convey("When the year column could not be parsed", func() {
			s, err := svc.Series(ctx, "Europe - France", 0, 2022)

			Convey("Then the unknown year should be excluded", func() {
				So(err, ShouldBeNil)
				So(s.Points, ShouldResemble, []timeseries.Point{{Year: 2022, Value: 0.5}})
			})
		})
	})
}

func TestService_View(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		src := &memSource{rows: panel()}
		svc := service.New(service.WithSource(src))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When the comparison result is requested twice", func() {
			first, err := svc.ViewResult(ctx)
			So(err, ShouldBeNil)
			_, err = svc.ViewResult(ctx)
			So(err, ShouldBeNil)

			Convey("Then it should be computed once", func() {
				So(first.Comparison, ShouldNotBeNil)
				So(first.Comparison.Order, ShouldResemble, []string{"Africa"})
				So(svc.GetStats()["aggregations"], ShouldEqual, 1)
			})
		})

		Convey("When cached comparison results are served", func() {
			_, err := svc.ViewResult(ctx)
			So(err, ShouldBeNil)
			before := counterValue("debtlens_engine_aggregations_total")
			for i := 0; i < 3; i++ {
				_, err = svc.ViewResult(ctx)
				So(err, ShouldBeNil)
			}

			Convey("Then no aggregation should be recorded", func() {
				So(counterValue("debtlens_engine_aggregations_total"), ShouldEqual, before)
			})

			Convey("Then a changed year should be recorded once", func() {
				svc.SetSnapshotYear(ctx, 2021)
				_, err := svc.ViewResult(ctx)
				So(err, ShouldBeNil)
				_, err = svc.ViewResult(ctx)
				So(err, ShouldBeNil)
				So(counterValue("debtlens_engine_aggregations_total"), ShouldEqual, before+1)
			})
		})

		Convey("When the mode is toggled and a key selected", func() {
			So(svc.ToggleMode(ctx), ShouldEqual, view.ModeCountrySeries)
			So(svc.SetSelectionKey(ctx, "Africa - Kenya"), ShouldBeNil)
			res, err := svc.ViewResult(ctx)

			Convey("Then the series should be returned", func() {
				So(err, ShouldBeNil)
				So(res.Series, ShouldNotBeNil)
				So(res.Series.Points, ShouldHaveLength, 2)
			})

			Convey("Then groups cannot be changed in series mode", func() {
				err := svc.SetGroups(ctx, []string{"Asia"})
				So(errors.Is(err, view.ErrWrongMode), ShouldBeTrue)
			})

			Convey("Then a reload without the country should clear the key", func() {
				src.set([]normalize.Row{row("Asia", "Southern Asia", "India", 2022, 15.6, 1.0)}, nil)
				_, err := svc.Reload(ctx)
				So(err, ShouldBeNil)
				So(svc.ViewState().Key, ShouldBeNil)

				res, err := svc.ViewResult(ctx)
				So(err, ShouldBeNil)
				So(res.Series, ShouldBeNil)
			})
		})

		Convey("When the window is set inverted", func() {
			err := svc.SetWindow(ctx, 2020, 2010)
			So(errors.Is(err, timeseries.ErrInvalidWindow), ShouldBeTrue)
		})

		Convey("When the snapshot year changes", func() {
			svc.SetSnapshotYear(ctx, 2021)
			res, err := svc.ViewResult(ctx)

			So(err, ShouldBeNil)
			So(res.Comparison.Year, ShouldEqual, 2021)
		})
	})
}

func TestService_Reload(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		src := &memSource{rows: panel()}
		svc := service.New(service.WithSource(src))
		So(svc.Start(ctx), ShouldBeNil)
		before, _ := svc.Snapshot()

		Convey("When the source fails", func() {
			src.set(nil, errors.New("disk gone"))
			_, err := svc.Reload(ctx)

			Convey("Then the previous snapshot should stay published", func() {
				So(errors.Is(err, service.ErrReload), ShouldBeTrue)
				cur, err := svc.Snapshot()
				So(err, ShouldBeNil)
				So(cur.Version, ShouldEqual, before.Version)
			})
		})

		Convey("When reloads run concurrently with queries", func() {
			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					_, _ = svc.Reload(ctx)
				}()
				go func() {
					defer wg.Done()
					_, _ = svc.Aggregate(ctx, 2022, []string{"Africa"})
					_, _ = svc.ViewResult(ctx)
				}()
			}
			wg.Wait()

			So(svc.GetStats()["snapshots"], ShouldEqual, uint64(5))
		})
	})
}
