package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"justmatcha-backend/internal/auth"
	"justmatcha-backend/internal/cart"
	"justmatcha-backend/internal/catalog"
	"justmatcha-backend/internal/order"
	"justmatcha-backend/internal/wishlist"
)

// ----- auth -----

func (s *Server) signUp(c *gin.Context) {
	var in auth.SignUpInput
	if !bind(c, &in) {
		return
	}
	sess, err := s.svc.Auth.SignUp(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "User created successfully", sess)
}

func (s *Server) signIn(c *gin.Context) {
	var in auth.SignInInput
	if !bind(c, &in) {
		return
	}
	sess, err := s.svc.Auth.SignIn(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "User signed in successfully", sess)
}

// signOut only acknowledges; tokens are stateless and expire on their own.
func (s *Server) signOut(c *gin.Context) {
	ok(c, http.StatusOK, "User signed out successfully", nil)
}

func (s *Server) getUser(c *gin.Context) {
	u, err := s.svc.Auth.GetUser(c.Request.Context(), actor(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "User fetched successfully", u)
}

func (s *Server) updateProfile(c *gin.Context) {
	var in auth.ProfileInput
	if !bind(c, &in) {
		return
	}
	u, err := s.svc.Auth.UpdateProfile(c.Request.Context(), actor(c).ID, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Profile updated successfully", u)
}

// ----- products -----

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.svc.Catalog.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Products fetched successfully", products)
}

func (s *Server) getProduct(c *gin.Context) {
	p, err := s.svc.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product fetched successfully", p)
}

func (s *Server) createProduct(c *gin.Context) {
	var in catalog.ProductInput
	if !bind(c, &in) {
		return
	}
	p, err := s.svc.Catalog.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Product created successfully", p)
}

func (s *Server) updateProduct(c *gin.Context) {
	var in catalog.ProductInput
	if !bind(c, &in) {
		return
	}
	p, err := s.svc.Catalog.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product updated successfully", p)
}

func (s *Server) deleteProduct(c *gin.Context) {
	p, err := s.svc.Catalog.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product deleted successfully", p)
}

// ----- orders -----

func (s *Server) createOrder(c *gin.Context) {
	var in order.CreateInput
	if !bind(c, &in) {
		return
	}
	o, err := s.svc.Orders.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Order created successfully", o)
}

func (s *Server) getOrder(c *gin.Context) {
	o, err := s.svc.Orders.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order fetched successfully", o)
}

func (s *Server) myOrders(c *gin.Context) {
	orders, err := s.svc.Orders.ListMine(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Orders fetched successfully", orders)
}

func (s *Server) allOrders(c *gin.Context) {
	orders, err := s.svc.Orders.ListAll(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Orders fetched successfully", orders)
}

func (s *Server) markPaid(c *gin.Context) {
	o, err := s.svc.Orders.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order marked as paid", o)
}

func (s *Server) markDelivered(c *gin.Context) {
	o, err := s.svc.Orders.MarkDelivered(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order marked as delivered", o)
}

func (s *Server) editOrder(c *gin.Context) {
	var in order.UpdateInput
	if !bind(c, &in) {
		return
	}
	o, err := s.svc.Orders.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order updated successfully", o)
}

// ----- cart -----

func (s *Server) getCart(c *gin.Context) {
	v, err := s.svc.Carts.Get(c.Request.Context(), actor(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Cart fetched successfully", v)
}

func (s *Server) addToCart(c *gin.Context) {
	var in cart.ItemInput
	if !bind(c, &in) {
		return
	}
	v, err := s.svc.Carts.Add(c.Request.Context(), actor(c).ID, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product added to cart successfully", v)
}

func (s *Server) updateCart(c *gin.Context) {
	var in cart.ItemInput
	if !bind(c, &in) {
		return
	}
	v, err := s.svc.Carts.SetQuantity(c.Request.Context(), actor(c).ID, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product updated successfully", v)
}

func (s *Server) deleteCart(c *gin.Context) {
	deleted, err := s.svc.Carts.Clear(c.Request.Context(), actor(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Cart cleared successfully", deleted)
}

func (s *Server) removeFromCart(c *gin.Context) {
	var in cart.RemoveInput
	if !bind(c, &in) {
		return
	}
	v, err := s.svc.Carts.Remove(c.Request.Context(), actor(c).ID, in.ProductID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product removed from cart successfully", v)
}

// ----- wishlist -----

func (s *Server) getWishlist(c *gin.Context) {
	v, err := s.svc.Wishlists.Get(c.Request.Context(), actor(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Wishlist fetched successfully", v)
}

func (s *Server) addToWishlist(c *gin.Context) {
	var in wishlist.AddInput
	if !bind(c, &in) {
		return
	}
	v, err := s.svc.Wishlists.Add(c.Request.Context(), actor(c).ID, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product added to wishlist successfully", v)
}

func (s *Server) removeFromWishlist(c *gin.Context) {
	v, err := s.svc.Wishlists.Remove(c.Request.Context(), actor(c).ID, c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product removed from wishlist", v)
}

func (s *Server) clearWishlist(c *gin.Context) {
	v, err := s.svc.Wishlists.Clear(c.Request.Context(), actor(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Wishlist cleared successfully", v)
}
