package design

import (
	. "goa.design/goa/v3/dsl"
)

var _ = API("almondsense", func() {
	Title("AlmondSense API")
	Description("Lead desk for AlmondSense: public contact form, customer accounts and the operator review workflow")
	Version("1.0.0")
	Server("api", func() {
		Host("localhost", func() {
			URI("http://localhost:8000")
		})
	})
})

// Operator session; the gate also accepts the almondsense_admin cookie.
var AdminAuth = JWTSecurity("admin_session", func() {
	Description("Operator session token issued by /admin/login")
})

// Customer token issued by sign-up and sign-in.
var CustomerAuth = JWTSecurity("customer", func() {
	Description("Customer bearer token")
})

var StatusEnum = func() {
	Enum("pending", "negotiating", "success")
}

var KindEnum = func() {
	Enum("submissions", "profiles")
}

// Health check
var _ = Service("health", func() {
	Description("Health check service")
	Method("check", func() {
		Result(HealthResult)
		HTTP(func() {
			GET("/health")
			Response(StatusOK)
		})
	})
})

var HealthResult = ResultType("application/vnd.almondsense.health", "HealthResult", func() {
	Attribute("status", String, "healthy or degraded", func() {
		Enum("healthy", "degraded")
		Example("healthy")
	})
	Attribute("service", String, "Service name", func() {
		Example("AlmondSense API")
	})
	Attribute("version", String, "Service version")
	Attribute("database", String, "Database reachability", func() {
		Enum("up", "down")
	})
	Required("status", "service", "version", "database")
})

// Public contact form
var _ = Service("submission", func() {
	Description("Public lead capture")
	Error("validation")

	Method("services", func() {
		Description("List the selectable services")
		Result(ServiceList)
		HTTP(func() {
			GET("/api/v1/services")
			Response(StatusOK)
		})
	})

	Method("submit", func() {
		Description("Store a new pending submission and notify the operators")
		Payload(SubmitPayload)
		Result(SubmitResult)
		Error("validation")
		HTTP(func() {
			POST("/api/v1/submissions")
			Response(StatusCreated)
			Response("validation", StatusBadRequest)
		})
	})
})

var ServiceList = Type("ServiceList", func() {
	Attribute("services", ArrayOf(String), "Service catalogue")
	Required("services")
})

var SubmitPayload = Type("SubmitPayload", func() {
	Attribute("name", String, "Contact name", func() {
		Example("Budi Santoso")
	})
	Attribute("email", String, "Contact e-mail, stored as given", func() {
		Example("budi@kebun.id")
	})
	Attribute("phone", String, "Phone number", func() {
		Example("081234567890")
	})
	Attribute("company", String, "Farm or company name")
	Attribute("service", String, "Requested service", func() {
		Enum("Pemantauan IoT Real-time", "Analisis AI Prediktif", "Prakiraan Cuaca Lokal",
			"Manajemen Tanaman", "Dashboard Analitik", "Paket Lengkap")
	})
	Attribute("land_size", String, "Land size", func() {
		Example("5 hektar")
	})
	Attribute("message", String, "Free text")
	Required("name", "email", "phone", "service")
})

var SubmitResult = ResultType("application/vnd.almondsense.submit", "SubmitResult", func() {
	Attribute("id", String, "Submission id", func() {
		Format(FormatUUID)
	})
	Attribute("status", String, "Initial status", StatusEnum)
	Attribute("title", String, "Confirmation title", func() {
		Example("Berhasil Terkirim!")
	})
	Attribute("description", String, "Confirmation text")
	Required("id", "status", "title", "description")
})

var SubmissionResult = ResultType("application/vnd.almondsense.submission", "Submission", func() {
	Attribute("id", String, "Submission id")
	Attribute("name", String, "Contact name")
	Attribute("email", String, "Contact e-mail")
	Attribute("phone", String, "Phone number")
	Attribute("company", String, "Farm or company name")
	Attribute("service", String, "Requested service")
	Attribute("land_size", String, "Land size")
	Attribute("message", String, "Free text")
	Attribute("status", String, "Lifecycle status", StatusEnum)
	Attribute("created_at", String, "Creation timestamp", func() {
		Format(FormatDateTime)
	})
	Attribute("updated_at", String, "Update timestamp", func() {
		Format(FormatDateTime)
	})
	Required("id", "name", "email", "phone", "service", "status", "created_at")
})

var ProfileResult = ResultType("application/vnd.almondsense.profile", "Profile", func() {
	Attribute("id", String, "Profile id")
	Attribute("user_id", String, "Owning account id")
	Attribute("full_name", String, "Full name")
	Attribute("email", String, "E-mail at registration")
	Attribute("phone", String, "Phone number")
	Attribute("company", String, "Company")
	Attribute("created_at", String, "Creation timestamp", func() {
		Format(FormatDateTime)
	})
	Required("id", "user_id", "full_name", "email", "created_at")
})

var SummaryResult = Type("Summary", func() {
	Attribute("total", Int, "Number of submissions")
	Attribute("by_status", MapOf(String, Int), "Count per status, every status present")
	Attribute("today", Int, "Submissions created today")
	Attribute("unique_emails", Int, "Distinct e-mail addresses, case-insensitive")
	Required("total", "by_status", "today", "unique_emails")
})

// Customer accounts
var _ = Service("customer", func() {
	Description("Customer registration and dashboard")
	Error("validation")
	Error("conflict")
	Error("unauthorized")

	Method("signup", func() {
		Payload(SignUpPayload)
		Result(AuthResult)
		HTTP(func() {
			POST("/api/v1/customer/signup")
			Response(StatusCreated)
			Response("validation", StatusBadRequest)
			Response("conflict", StatusConflict)
		})
	})

	Method("signin", func() {
		Payload(SignInPayload)
		Result(AuthResult)
		HTTP(func() {
			POST("/api/v1/customer/signin")
			Response(StatusOK)
			Response("validation", StatusBadRequest)
			Response("unauthorized", StatusUnauthorized)
		})
	})

	Method("signout", func() {
		Security(CustomerAuth)
		Payload(func() {
			Token("token", String, "Customer token")
		})
		HTTP(func() {
			POST("/api/v1/customer/signout")
			Response(StatusNoContent)
			Response("unauthorized", StatusUnauthorized)
		})
	})

	Method("dashboard", func() {
		Description("The customer's profile and the submissions sent from their e-mail")
		Security(CustomerAuth)
		Payload(func() {
			Token("token", String, "Customer token")
		})
		Result(DashboardResult)
		HTTP(func() {
			GET("/api/v1/customer/dashboard")
			Response(StatusOK)
			Response("unauthorized", StatusUnauthorized)
		})
	})
})

var SignUpPayload = Type("SignUpPayload", func() {
	Attribute("email", String, "E-mail", func() {
		Format(FormatEmail)
	})
	Attribute("password", String, "Password", func() {
		MinLength(6)
	})
	Attribute("full_name", String, "Full name", func() {
		MinLength(2)
	})
	Attribute("phone", String, "Phone number", func() {
		MinLength(10)
	})
	Attribute("company", String, "Company")
	Required("email", "password", "full_name", "phone")
})

var SignInPayload = Type("SignInPayload", func() {
	Attribute("email", String, "E-mail")
	Attribute("password", String, "Password")
	Required("email", "password")
})

var AuthResult = ResultType("application/vnd.almondsense.auth", "AuthResult", func() {
	Attribute("token", String, "Bearer token")
	Attribute("title", String, "Toast title")
	Attribute("description", String, "Toast text")
	Attribute("profile", ProfileResult, "Profile created at sign-up")
	Required("token", "title", "description")
})

var DashboardResult = ResultType("application/vnd.almondsense.dashboard", "Dashboard", func() {
	Attribute("email", String, "Signed-in e-mail")
	Attribute("profile", ProfileResult, "Customer profile")
	Attribute("submissions", CollectionOf(SubmissionResult), "Submissions from this e-mail, newest first")
	Attribute("summary", SummaryResult)
	Required("email", "submissions", "summary")
})

// Operator review workflow
var _ = Service("admin", func() {
	Description("Operator review desk. Requests without a live session are redirected to the login path.")
	Error("unauthorized")
	Error("not_found")
	Error("bad_request")
	Error("validation")
	Error("conflict")
	Error("rate_limited")
	Error("unavailable")

	Method("login", func() {
		Description("Open an operator session and set the session cookie")
		Payload(func() {
			Attribute("username", String, "Operator username")
			Attribute("password", String, "Operator password")
			Required("username", "password")
		})
		Result(AdminLoginResult)
		HTTP(func() {
			POST("/admin/login")
			Response(StatusOK)
			Response("unauthorized", StatusUnauthorized)
			Response("rate_limited", StatusTooManyRequests)
		})
	})

	Method("logout", func() {
		Security(AdminAuth)
		Payload(adminToken)
		HTTP(func() {
			POST("/admin/logout")
			Response(StatusNoContent)
		})
	})

	Method("view", func() {
		Description("Filtered records with the open draft and, for submissions, derived metrics")
		Security(AdminAuth)
		Payload(func() {
			adminToken()
			Attribute("kind", String, "Record kind", KindEnum)
			Attribute("q", String, "Case-insensitive search over name, e-mail and company")
			Required("kind")
		})
		Result(ReviewView)
		HTTP(func() {
			GET("/admin/api/{kind}")
			Param("q")
			Response(StatusOK)
			Response("not_found", StatusNotFound)
			Response("unavailable", StatusServiceUnavailable)
		})
	})

	Method("reload", func() {
		Security(AdminAuth)
		Payload(kindPayload)
		Result(ReviewView)
		HTTP(func() {
			POST("/admin/api/{kind}/reload")
			Response(StatusOK)
			Response("unavailable", StatusServiceUnavailable)
		})
	})

	Method("begin_edit", func() {
		Description("Open the single draft on a record")
		Security(AdminAuth)
		Payload(recordPayload)
		Result(Any)
		HTTP(func() {
			POST("/admin/api/{kind}/{id}/edit")
			Response(StatusOK)
			Response("not_found", StatusNotFound)
			Response("conflict", StatusConflict)
		})
	})

	Method("edit_draft", func() {
		Description("Stage column values on the open draft")
		Security(AdminAuth)
		Payload(func() {
			adminToken()
			Attribute("kind", String, "Record kind", KindEnum)
			Attribute("fields", MapOf(String, String), "Column values to stage")
			Required("kind", "fields")
		})
		Result(Any)
		HTTP(func() {
			PATCH("/admin/api/{kind}/draft")
			Body("fields")
			Response(StatusOK)
			Response("validation", StatusBadRequest)
			Response("conflict", StatusConflict)
		})
	})

	Method("commit_edit", func() {
		Security(AdminAuth)
		Payload(kindPayload)
		Result(Any)
		HTTP(func() {
			POST("/admin/api/{kind}/draft/commit")
			Response(StatusOK)
			Response("not_found", StatusNotFound)
			Response("conflict", StatusConflict)
		})
	})

	Method("cancel_edit", func() {
		Security(AdminAuth)
		Payload(kindPayload)
		HTTP(func() {
			DELETE("/admin/api/{kind}/draft")
			Response(StatusNoContent)
		})
	})

	Method("change_status", func() {
		Description("Set the status of a submission in one step")
		Security(AdminAuth)
		Payload(func() {
			adminToken()
			Attribute("kind", String, "Record kind", func() {
				Enum("submissions")
			})
			Attribute("id", String, "Submission id")
			Attribute("status", String, "New status", StatusEnum)
			Required("kind", "id", "status")
		})
		Result(SubmissionResult)
		HTTP(func() {
			PUT("/admin/api/{kind}/{id}/status")
			Response(StatusOK)
			Response("not_found", StatusNotFound)
			Response("validation", StatusBadRequest)
			Response("conflict", StatusConflict)
		})
	})

	Method("delete", func() {
		Description("Delete a record. Nothing happens unless confirm is true.")
		Security(AdminAuth)
		Payload(func() {
			recordPayload()
			Attribute("confirm", Boolean, "Operator confirmation", func() {
				Default(false)
			})
		})
		HTTP(func() {
			DELETE("/admin/api/{kind}/{id}")
			Param("confirm")
			Response(StatusNoContent)
			Response("not_found", StatusNotFound)
		})
	})

	Method("notifications", func() {
		Description("Drain the session's pending notifications")
		Security(AdminAuth)
		Payload(adminToken)
		Result(ArrayOf(NotificationResult))
		HTTP(func() {
			GET("/admin/api/notifications")
			Response(StatusOK)
		})
	})

	Method("profiles_by_email", func() {
		Description("Profiles registered with a submission's e-mail; zero or more")
		Security(AdminAuth)
		Payload(func() {
			adminToken()
			Attribute("email", String, "E-mail to resolve")
			Required("email")
		})
		Result(CollectionOf(ProfileResult))
		HTTP(func() {
			GET("/admin/api/profiles/by-email")
			Param("email")
			Response(StatusOK)
			Response("bad_request", StatusBadRequest)
		})
	})
})

func adminToken() {
	Token("token", String, "Operator session token")
}

func kindPayload() {
	adminToken()
	Attribute("kind", String, "Record kind", KindEnum)
	Required("kind")
}

func recordPayload() {
	kindPayload()
	Attribute("id", String, "Record id")
	Required("id")
}

var AdminLoginResult = ResultType("application/vnd.almondsense.admin-login", "AdminLoginResult", func() {
	Attribute("token", String, "Session token, also set as cookie")
	Attribute("username", String, "Operator username")
	Attribute("expires_at", String, "Session expiry", func() {
		Format(FormatDateTime)
	})
	Required("token", "username", "expires_at")
})

var ReviewView = ResultType("application/vnd.almondsense.review-view", "ReviewView", func() {
	Attribute("kind", String, "Record kind", KindEnum)
	Attribute("query", String, "Active search query")
	Attribute("loaded", Boolean, "Whether a load has succeeded")
	Attribute("total", Int, "Number of loaded records before filtering")
	Attribute("records", ArrayOf(Any), "Records matching the query, newest first")
	Attribute("editing_id", String, "Record with an open draft")
	Attribute("draft", Any, "Record with staged values applied")
	Attribute("staged", MapOf(String, Any), "Staged column values")
	Attribute("summary", SummaryResult, "Submission metrics")
	Required("kind", "query", "loaded", "total", "records")
})

var NotificationResult = Type("Notification", func() {
	Attribute("title", String, "Toast title", func() {
		Example("Status Diperbarui")
	})
	Attribute("description", String, "Toast text")
	Attribute("outcome", String, "Outcome", func() {
		Enum("success", "failure")
	})
	Attribute("op", String, "Operation, kind.op", func() {
		Example("submissions.status")
	})
	Attribute("at", String, "Time of the outcome", func() {
		Format(FormatDateTime)
	})
	Required("title", "description", "outcome", "op", "at")
})
