package style_test

import (
	"errors"
	"testing"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	style "github.com/Farid-Ze/kolb-sub001/internal/domain/style"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func ptr(v float64) *float64 { return &v }

func klsiThresholds() style.Thresholds {
	return style.Thresholds{
		ACCE: style.AxisThresholds{LowMax: ptr(5), MidMax: ptr(14)},
		AERO: style.AxisThresholds{LowMax: ptr(0), MidMax: ptr(11)},
	}
}

func klsiGrid() style.Grid {
	return style.Grid{
		types.BandLow: {
			types.BandLow:  types.StyleImagining,
			types.BandMid:  types.StyleExperiencing,
			types.BandHigh: types.StyleInitiating,
		},
		types.BandMid: {
			types.BandLow:  types.StyleReflecting,
			types.BandMid:  types.StyleBalancing,
			types.BandHigh: types.StyleActing,
		},
		types.BandHigh: {
			types.BandLow:  types.StyleAnalyzing,
			types.BandMid:  types.StyleThinking,
			types.BandHigh: types.StyleDeciding,
		},
	}
}

func TestBand(t *testing.T) {
	Convey("Given the ACCE axis cutoffs", t, func() {
		acce := klsiThresholds().ACCE

		Convey("Then values band exactly at the inclusive cutoffs", func() {
			So(style.Band(acce, -30), ShouldEqual, types.BandLow)
			So(style.Band(acce, 5), ShouldEqual, types.BandLow)
			So(style.Band(acce, 6), ShouldEqual, types.BandMid)
			So(style.Band(acce, 14), ShouldEqual, types.BandMid)
			So(style.Band(acce, 15), ShouldEqual, types.BandHigh)
		})
	})

	Convey("Given the AERO axis cutoffs", t, func() {
		aero := klsiThresholds().AERO

		Convey("Then values band exactly at the inclusive cutoffs", func() {
			So(style.Band(aero, 0), ShouldEqual, types.BandLow)
			So(style.Band(aero, 1), ShouldEqual, types.BandMid)
			So(style.Band(aero, 11), ShouldEqual, types.BandMid)
			So(style.Band(aero, 12), ShouldEqual, types.BandHigh)
		})
	})

	Convey("Given an axis with a nil mid cutoff", t, func() {
		open := style.AxisThresholds{LowMax: ptr(5)}

		Convey("Then everything above Low bands Mid", func() {
			So(style.Band(open, 6), ShouldEqual, types.BandMid)
			So(style.Band(open, 1000), ShouldEqual, types.BandMid)
		})
	})
}

func TestClassifier(t *testing.T) {
	Convey("Given a classifier with the nine-style grid", t, func() {
		c, err := style.NewClassifier(klsiThresholds(), klsiGrid())
		So(err, ShouldBeNil)

		Convey("When classifying a double-low score", func() {
			got, err := c.Classify(model.CombinationScore{SessionID: "s1", ACCERaw: 2, AERORaw: -4})
			So(err, ShouldBeNil)
			So(got.Style, ShouldEqual, types.StyleImagining)
			So(got.SessionID, ShouldEqual, "s1")
		})

		Convey("When classifying a double-mid score", func() {
			got, err := c.Classify(model.CombinationScore{SessionID: "s1", ACCERaw: 10, AERORaw: 6})
			So(err, ShouldBeNil)
			So(got.Style, ShouldEqual, types.StyleBalancing)
		})

		Convey("When classifying a double-high score", func() {
			got, err := c.Classify(model.CombinationScore{SessionID: "s1", ACCERaw: 20, AERORaw: 18})
			So(err, ShouldBeNil)
			So(got.Style, ShouldEqual, types.StyleDeciding)
		})

		Convey("When classifying the same score repeatedly", func() {
			comb := model.CombinationScore{SessionID: "s1", ACCERaw: 14, AERORaw: 0}
			first, err := c.Classify(comb)
			So(err, ShouldBeNil)
			second, err := c.Classify(comb)
			So(err, ShouldBeNil)

			Convey("Then the assignment is stable", func() {
				So(second, ShouldResemble, first)
				So(first.Style, ShouldEqual, types.StyleReflecting)
			})
		})

		Convey("Then every band pair resolves to a distinct canonical style", func() {
			seen := make(map[types.Style]struct{})
			for acce := -36.0; acce <= 36; acce += 9 {
				for aero := -36.0; aero <= 36; aero += 9 {
					got, err := c.Classify(model.CombinationScore{ACCERaw: acce, AERORaw: aero})
					So(err, ShouldBeNil)
					So(got.Style.Valid(), ShouldBeTrue)
					seen[got.Style] = struct{}{}
				}
			}
			So(len(seen), ShouldEqual, 9)
		})
	})

	Convey("Given a grid with a missing cell", t, func() {
		grid := klsiGrid()
		delete(grid[types.BandMid], types.BandHigh)

		Convey("Then construction fails with ErrIncompleteGrid", func() {
			_, err := style.NewClassifier(klsiThresholds(), grid)
			So(errors.Is(err, style.ErrIncompleteGrid), ShouldBeTrue)
		})
	})

	Convey("Given a grid with a free-text label", t, func() {
		grid := klsiGrid()
		grid[types.BandLow][types.BandLow] = types.Style("Dreaming")

		Convey("Then construction fails with ErrUnknownStyle", func() {
			_, err := style.NewClassifier(klsiThresholds(), grid)
			So(errors.Is(err, style.ErrUnknownStyle), ShouldBeTrue)
		})
	})
}
