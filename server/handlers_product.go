package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"poultryflow/product"
)

type createProductRequest struct {
	Name              string `json:"name"`
	Category          string `json:"category"`
	UnitPrice         int64  `json:"unitPrice"`
	BookingFeePerUnit int64  `json:"bookingFeePerUnit"`
}

func (s *Server) handleListProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	products, err := s.productService.ListActive(c.Request.Context(), limit)
	if err != nil {
		serviceError(c, err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, newProductResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}

func (s *Server) handleGetProduct(c *gin.Context) {
	p, err := s.productService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": newProductResponse(p)})
}

func (s *Server) handleCreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	p, err := s.productService.Create(c.Request.Context(), product.CreateParams{
		Name:              req.Name,
		Category:          product.Category(req.Category),
		UnitPrice:         req.UnitPrice,
		BookingFeePerUnit: req.BookingFeePerUnit,
	})
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"product": newProductResponse(p)})
}
