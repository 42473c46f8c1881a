package principal

// Request bodies accepted by the HTTP layer. Only the shape is checked by the
// binding tags; field rules are enforced by the credential store.

type SignupUserRequest struct {
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`

	Name            string `json:"name"`
	Surname         string `json:"surname"`
	Gender          string `json:"gender"`
	DateOfBirth     string `json:"dateOfBirth"`
	State           string `json:"state"`
	City            string `json:"city"`
	PostalCode      string `json:"postalCode"`
	StreetName      string `json:"streetName"`
	StreetNumber    string `json:"streetNumber"`
	ApartmentNumber string `json:"apartmentNumber"`
}

func (r SignupUserRequest) Attrs() SignupAttrs {
	return SignupAttrs{
		Kind:            KindUser,
		Email:           r.Email,
		Password:        r.Password,
		PasswordConfirm: r.PasswordConfirm,
		User: &UserProfile{
			Name:        r.Name,
			Surname:     r.Surname,
			Gender:      r.Gender,
			DateOfBirth: r.DateOfBirth,
			Address: Address{
				State:           r.State,
				City:            r.City,
				PostalCode:      r.PostalCode,
				StreetName:      r.StreetName,
				StreetNumber:    r.StreetNumber,
				ApartmentNumber: r.ApartmentNumber,
			},
		},
	}
}

type SignupMerchantRequest struct {
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`

	RestaurantName  string   `json:"restaurantName"`
	Cuisine         string   `json:"cuisine"`
	Rating          *float64 `json:"rating"`
	State           string   `json:"state"`
	City            string   `json:"city"`
	PostalCode      string   `json:"postalCode"`
	StreetName      string   `json:"streetName"`
	StreetNumber    string   `json:"streetNumber"`
	ApartmentNumber string   `json:"apartmentNumber"`
}

func (r SignupMerchantRequest) Attrs() SignupAttrs {
	return SignupAttrs{
		Kind:            KindMerchant,
		Email:           r.Email,
		Password:        r.Password,
		PasswordConfirm: r.PasswordConfirm,
		Merchant: &MerchantProfile{
			RestaurantName: r.RestaurantName,
			Cuisine:        r.Cuisine,
			Rating:         r.Rating,
			Address: Address{
				State:           r.State,
				City:            r.City,
				PostalCode:      r.PostalCode,
				StreetName:      r.StreetName,
				StreetNumber:    r.StreetNumber,
				ApartmentNumber: r.ApartmentNumber,
			},
		},
	}
}

// LoginRequest carries no format rules: a malformed email fails like any
// other bad credential.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type ChangePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}
