// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package accounts_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/holomush/accounts/internal/auth"
)

func ptr(s string) *string { return &s }

var _ = Describe("Account lifecycle", func() {
	var (
		svc  *auth.Service
		mail *outbox
	)

	BeforeEach(func() {
		truncateUsers()
		mail = &outbox{}
		svc, _ = newService(mail)
	})

	signup := func(email, password string) *auth.PublicProfile {
		GinkgoHelper()
		user, err := svc.Signup(env.ctx, auth.SignupRequest{
			Email:           email,
			Password:        password,
			ConfirmPassword: ptr(password),
			Profile:         auth.Profile{Name: "Test " + email},
		})
		Expect(err).NotTo(HaveOccurred())
		return user
	}

	login := func(email, password string, remember bool) *auth.SessionState {
		GinkgoHelper()
		session, err := svc.Login(env.ctx, auth.LoginRequest{Email: email, Password: password, Remember: remember})
		Expect(err).NotTo(HaveOccurred())
		return session
	}

	Describe("signup", func() {
		It("makes only the first account an administrator", func() {
			first := signup("ada@example.com", "ada-secret")
			second := signup("bob@example.com", "bob-secret")

			Expect(first.IsAdmin).To(BeTrue())
			Expect(second.IsAdmin).To(BeFalse())
		})

		It("grants admin to exactly one of many concurrent signups", func() {
			var wg sync.WaitGroup
			admins := make(chan bool, 8)
			for i := range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					user, err := svc.Signup(env.ctx, auth.SignupRequest{
						Email:    string(rune('a'+i)) + "@example.com",
						Password: "concurrent",
					})
					Expect(err).NotTo(HaveOccurred())
					admins <- user.IsAdmin
				}()
			}
			wg.Wait()
			close(admins)

			count := 0
			for admin := range admins {
				if admin {
					count++
				}
			}
			Expect(count).To(Equal(1))
		})

		It("rejects a second account with the same email in any case", func() {
			signup("ada@example.com", "ada-secret")

			_, err := svc.Signup(env.ctx, auth.SignupRequest{Email: "ADA@Example.com", Password: "other"})
			Expect(auth.Code(err)).To(Equal(auth.CodeConflict))
		})
	})

	Describe("login and remember-me", func() {
		BeforeEach(func() {
			signup("ada@example.com", "ada-secret")
		})

		It("fails identically for unknown emails and wrong passwords", func() {
			_, unknown := svc.Login(env.ctx, auth.LoginRequest{Email: "ghost@example.com", Password: "x"})
			_, wrong := svc.Login(env.ctx, auth.LoginRequest{Email: "ada@example.com", Password: "x"})

			Expect(auth.Code(unknown)).To(Equal(auth.CodeInvalidCredentials))
			Expect(auth.UserMessage(unknown)).To(Equal(auth.UserMessage(wrong)))
		})

		It("resumes a remembered session until logout", func() {
			session := login("ada@example.com", "ada-secret", true)
			Expect(session.HasRememberToken()).To(BeTrue())

			resumed, err := svc.Resume(env.ctx, session.RememberToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(resumed.User.Email).To(Equal("ada@example.com"))

			Expect(svc.Logout(env.ctx, resumed)).To(Succeed())
			_, err = svc.Resume(env.ctx, session.RememberToken)
			Expect(auth.Code(err)).To(Equal(auth.CodeRememberInvalid))
		})

		It("signs out other remembered logins on a password change", func() {
			other := login("ada@example.com", "ada-secret", true)
			current := login("ada@example.com", "ada-secret", true)

			changed, err := svc.ChangePassword(env.ctx, current, "ada-secret", "ada-new-secret")
			Expect(err).NotTo(HaveOccurred())
			Expect(changed.HasRememberToken()).To(BeTrue())

			_, err = svc.Resume(env.ctx, other.RememberToken)
			Expect(auth.Code(err)).To(Equal(auth.CodeRememberInvalid))
			_, err = svc.Resume(env.ctx, changed.RememberToken)
			Expect(err).NotTo(HaveOccurred())

			login("ada@example.com", "ada-new-secret", false)
		})
	})

	Describe("password reset", func() {
		BeforeEach(func() {
			signup("ada@example.com", "ada-secret")
		})

		It("resets the password once per token", func() {
			Expect(svc.RequestPasswordReset(env.ctx, "Ada@Example.com")).To(Succeed())
			token := mail.tokenFor("ada@example.com")
			Expect(token).To(MatchRegexp(`^[0-9a-f]{64}$`))

			who, err := svc.ValidateResetToken(env.ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(who.Email).To(Equal("ada@example.com"))

			Expect(svc.ResetPassword(env.ctx, token, "fresh-secret", ptr("fresh-secret"))).To(Succeed())
			login("ada@example.com", "fresh-secret", false)

			err = svc.ResetPassword(env.ctx, token, "again", ptr("again"))
			Expect(auth.Code(err)).To(Equal(auth.CodeInvalidOrExpiredToken))
		})

		It("replaces an earlier token with a new request", func() {
			Expect(svc.RequestPasswordReset(env.ctx, "ada@example.com")).To(Succeed())
			first := mail.tokenFor("ada@example.com")
			Expect(svc.RequestPasswordReset(env.ctx, "ada@example.com")).To(Succeed())

			_, err := svc.ValidateResetToken(env.ctx, first)
			Expect(auth.Code(err)).To(Equal(auth.CodeInvalidOrExpiredToken))
		})

		It("says nothing about unknown addresses", func() {
			Expect(svc.RequestPasswordReset(env.ctx, "ghost@example.com")).To(Succeed())
			Expect(mail.tokenFor("ghost@example.com")).To(BeEmpty())
		})
	})

	Describe("administration", func() {
		var admin, member *auth.SessionState

		BeforeEach(func() {
			signup("ada@example.com", "ada-secret")
			signup("bob@example.com", "bob-secret")
			admin = login("ada@example.com", "ada-secret", false)
			member = login("bob@example.com", "bob-secret", true)
		})

		It("lets admins search, deactivate and delete accounts", func() {
			users, err := svc.ListUsers(env.ctx, admin, "BOB")
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
			bob := users[0].ID

			Expect(svc.SetActive(env.ctx, admin, bob, false)).To(Succeed())
			_, err = svc.Login(env.ctx, auth.LoginRequest{Email: "bob@example.com", Password: "bob-secret"})
			Expect(auth.Code(err)).To(Equal(auth.CodeAccountDeactivated))
			_, err = svc.Resume(env.ctx, member.RememberToken)
			Expect(err).To(HaveOccurred())

			Expect(svc.DeleteUser(env.ctx, admin, bob)).To(Succeed())
			_, err = svc.GetUser(env.ctx, admin, bob)
			Expect(auth.Code(err)).To(Equal(auth.CodeNotFound))
		})

		It("refuses admin operations to members", func() {
			_, err := svc.ListUsers(env.ctx, member, "")
			Expect(auth.Code(err)).To(Equal(auth.CodeForbidden))
		})

		It("refuses to let an admin demote themselves", func() {
			err := svc.SetAdmin(env.ctx, admin, admin.User.ID, false)
			Expect(auth.Code(err)).To(Equal(auth.CodeForbidden))
		})
	})
})

var _ = Describe("Operation metrics", func() {
	BeforeEach(truncateUsers)

	It("counts outcomes per operation", func() {
		svc, registry := newService(&outbox{})
		_, err := svc.Signup(env.ctx, auth.SignupRequest{Email: "ada@example.com", Password: "ada-secret"})
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Login(env.ctx, auth.LoginRequest{Email: "ada@example.com", Password: "wrong"})
		Expect(err).To(HaveOccurred())

		count, err := testutil.GatherAndCount(registry, "accounts_auth_operations_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))
	})
})
