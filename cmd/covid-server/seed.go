package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-sql/civil"
	"github.com/spf13/cobra"

	"github.com/covidtrack/covid-server/internal/domain/caserecord"
	"github.com/covidtrack/covid-server/internal/domain/identity"
	"github.com/covidtrack/covid-server/internal/domain/location"
	"github.com/covidtrack/covid-server/internal/domain/statestats"
	"github.com/covidtrack/covid-server/internal/domain/vaccination"
	"github.com/covidtrack/covid-server/internal/platform/auth"
	"github.com/covidtrack/covid-server/internal/platform/db"
)

const seedPassword = "covid@123"

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo accounts, locations, cases and vaccinations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			tx := db.PoolTxRunner{Pool: pool}
			s := &seeder{
				identity:     identity.NewService(identity.NewUserRepoPG(pool), identity.NewPatientRepoPG(pool), tx, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), cfg.BcryptCost),
				locations:    location.NewService(location.NewRepoPG(pool)),
				cases:        caserecord.NewService(caserecord.NewRepoPG(pool)),
				vaccinations: vaccination.NewService(vaccination.NewRepoPG(pool), tx),
				stateStats:   statestats.NewService(statestats.NewRepoPG(pool)),
				out:          cmd.OutOrStdout(),
			}
			return s.run(ctx)
		},
	}
}

type seeder struct {
	identity     *identity.Service
	locations    *location.Service
	cases        *caserecord.Service
	vaccinations *vaccination.Service
	stateStats   *statestats.Service
	out          io.Writer
}

type seedPatient struct {
	first, last string
	email       string
	doses       []civil.Date
	vaccine     vaccination.VaccineType
	diag        civil.Date
	status      caserecord.Status
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func (s *seeder) run(ctx context.Context) error {
	admin, err := s.identity.CreateUser(ctx, identity.NewAccount{
		FirstName: "Asha", LastName: "Admin", Name: "Asha Admin", Email: "admin@covid.in", Password: seedPassword, Role: auth.RoleAdmin,
	})
	if errors.Is(err, identity.ErrEmailTaken) {
		fmt.Fprintln(s.out, "Database already seeded.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if _, err := s.identity.CreateUser(ctx, identity.NewAccount{
		FirstName: "Manoj", LastName: "Manager", Name: "Manoj Manager", Email: "manager@covid.in", Password: seedPassword, Role: auth.RoleManager,
	}); err != nil {
		return fmt.Errorf("seed manager: %w", err)
	}

	var locs []*location.Location
	for _, l := range []location.Location{
		{Name: "General Hospital", Address: "MG Road", Street: "1st Cross", Zip: "682001", State: "Kerala"},
		{Name: "City Clinic", Address: "Linking Road", Street: "Bandra West", Zip: "400050", State: "Maharashtra"},
	} {
		l := l
		if err := s.locations.Create(ctx, &l); err != nil {
			return fmt.Errorf("seed location %s: %w", l.Name, err)
		}
		locs = append(locs, &l)
	}

	patients := []seedPatient{
		{first: "Ravi", last: "Kumar", email: "ravi@covid.in", doses: []civil.Date{date(2021, 5, 10)}, vaccine: vaccination.Covishield, diag: date(2021, 4, 20), status: caserecord.StatusRecovered},
		{first: "Meera", last: "Nair", email: "meera@covid.com", doses: []civil.Date{date(2021, 6, 1), date(2021, 9, 1)}, vaccine: vaccination.Covaxin, diag: date(2021, 7, 15), status: caserecord.StatusActive},
		{first: "Arjun", last: "Das", email: "arjun@covid.in", vaccine: vaccination.Sputnik},
	}
	for i, sp := range patients {
		u, err := s.identity.CreateUser(ctx, identity.NewAccount{
			FirstName: sp.first, LastName: sp.last, Name: sp.first + " " + sp.last, Email: sp.email, Password: seedPassword, Role: auth.RoleUser,
		})
		if err != nil {
			return fmt.Errorf("seed patient %s: %w", sp.email, err)
		}
		for _, d := range sp.doses {
			v := &vaccination.Vaccination{PatientID: u.ID, Date: d, VaccineType: sp.vaccine}
			if err := s.vaccinations.Create(ctx, v); err != nil {
				return fmt.Errorf("seed vaccination for %s: %w", sp.email, err)
			}
		}
		if sp.diag.IsValid() {
			r := &caserecord.CaseRecord{PatientID: u.ID, LocationID: locs[i%len(locs)].ID, DiagDate: sp.diag, Status: sp.status}
			if err := s.cases.Create(ctx, r); err != nil {
				return fmt.Errorf("seed case record for %s: %w", sp.email, err)
			}
		}
	}

	actor := auth.Principal{UserID: admin.ID, Role: auth.RoleAdmin}
	for _, st := range []statestats.StateStat{
		{State: "Kerala", Confirmed: 5200, Recovered: 4800, Active: 370, Deaths: 30},
		{State: "Maharashtra", Confirmed: 9100, Recovered: 8300, Active: 650, Deaths: 150},
	} {
		st := st
		if err := s.stateStats.Create(ctx, actor, &st); err != nil {
			return fmt.Errorf("seed state stats %s: %w", st.State, err)
		}
	}

	fmt.Fprintf(s.out, "Seeded 2 staff accounts, %d patients and %d locations. Password: %s\n", len(patients), len(locs), seedPassword)
	return nil
}
